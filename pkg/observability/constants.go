// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package observability provides OpenTelemetry tracing and Prometheus metrics
// for the task executor, the A2A server host and the conversation client.
//
// Configure it in the observability section of the config file:
//
//	observability:
//	  tracing:
//	    enabled: true
//	    exporter: otlp
//	    endpoint: localhost:4317
//	    sampling_rate: 1.0
//	  metrics:
//	    enabled: true
//	    endpoint: /metrics
package observability

const (
	DefaultServiceName  = "parley"
	DefaultNamespace    = "parley"
	DefaultMetricsPath  = "/metrics"
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultSamplingRate = 1.0
)

// Span names.
const (
	SpanTaskExecute  = "parley.task.execute"
	SpanTaskCancel   = "parley.task.cancel"
	SpanHTTPRequest  = "parley.http.request"
	SpanConverseTurn = "parley.conversation.turn"
)

// Span and metric attribute keys.
const (
	AttrServiceName    = "service.name"
	AttrServiceVersion = "service.version"

	AttrTaskID    = "a2a.task.id"
	AttrContextID = "a2a.context.id"
	AttrAgentName = "parley.agent.name"
	AttrOutcome   = "parley.outcome"
	AttrStepKind  = "parley.step.kind"
	AttrStepCount = "parley.step.count"

	AttrHTTPMethod       = "http.request.method"
	AttrHTTPRoute        = "http.route"
	AttrHTTPStatusCode   = "http.response.status_code"
	AttrHTTPResponseSize = "http.response.body.size"

	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Execution outcomes used as the outcome attribute.
const (
	OutcomeCompleted     = "completed"
	OutcomeInputRequired = "input_required"
	OutcomeIncomplete    = "incomplete"
	OutcomeError         = "error"
	OutcomeCanceled      = "canceled"
)
