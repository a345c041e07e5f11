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

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/fatih/color"

	"github.com/kadirpekel/parley/pkg/client"
	"github.com/kadirpekel/parley/pkg/config"
	"github.com/kadirpekel/parley/pkg/observability"
)

// RemoteFlags select the agent to talk to. They override the config's
// client section.
type RemoteFlags struct {
	URL      string `help:"Agent base URL." placeholder:"URL"`
	Card     string `help:"Local agent card file, used instead of --url." type:"path"`
	Insecure bool   `help:"Skip TLS certificate verification."`
}

// clientConfig returns the client section of the loaded config with the
// flags applied.
func (f *RemoteFlags) clientConfig(ctx context.Context, cli *CLI) (*config.Config, error) {
	cfg, loader, err := loadConfig(ctx, cli)
	if err != nil {
		return nil, err
	}
	if loader != nil {
		loader.Close()
	}
	switch {
	case f.Card != "":
		cfg.Client.Card, cfg.Client.URL = f.Card, ""
	case f.URL != "":
		cfg.Client.URL, cfg.Client.Card = f.URL, ""
	}
	if f.Insecure {
		cfg.Client.TLS.InsecureSkipVerify = true
	}
	return cfg, nil
}

// session is a resolved agent ready to converse with.
type session struct {
	card    *a2a.AgentCard
	sender  client.Sender
	tracer  *observability.Tracer
	destroy func()
}

func (s *session) Close() {
	s.destroy()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tracer.Shutdown(ctx); err != nil {
		slog.Debug("Tracer shutdown failed", "error", err)
	}
}

// connect resolves the agent card and dials the agent.
func (f *RemoteFlags) connect(ctx context.Context, cli *CLI) (*session, error) {
	cfg, err := f.clientConfig(ctx, cli)
	if err != nil {
		return nil, err
	}

	httpClient, err := client.NewHTTPClient(&cfg.Client)
	if err != nil {
		return nil, err
	}

	resolveCtx, cancel := context.WithTimeout(ctx, cfg.Client.Timeout)
	defer cancel()
	card, err := client.ResolveCard(resolveCtx, cfg.Client.Source(), httpClient)
	if err != nil {
		return nil, err
	}

	c, err := client.Dial(ctx, card, httpClient)
	if err != nil {
		return nil, err
	}

	tracer, err := observability.NewTracer(ctx, &cfg.Observability.Tracing)
	if err != nil {
		_ = c.Destroy()
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	return &session{
		card:   card,
		sender: client.NewSender(c, card),
		tracer: tracer,
		destroy: func() {
			if err := c.Destroy(); err != nil {
				slog.Debug("Client destroy failed", "error", err)
			}
		},
	}, nil
}

// lineReader reads lines in the background so that reads can be abandoned
// when a context is done.
type lineReader struct {
	lines chan string
	errs  chan error
}

func newLineReader(r io.Reader) *lineReader {
	lr := &lineReader{lines: make(chan string), errs: make(chan error, 1)}
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lr.lines <- scanner.Text()
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		lr.errs <- err
	}()
	return lr
}

// ReadLine returns the next line without its newline.
func (lr *lineReader) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line := <-lr.lines:
		return strings.TrimSpace(line), nil
	case err := <-lr.errs:
		// Keep reporting the end to later reads.
		lr.errs <- err
		return "", err
	}
}

// consolePrompter shows the agent's question and reads the reply.
type consolePrompter struct {
	out      io.Writer
	in       *lineReader
	question *color.Color
}

func (p *consolePrompter) Prompt(ctx context.Context, question string) (string, error) {
	if question != "" {
		p.question.Fprintln(p.out, question)
	}
	for {
		fmt.Fprint(p.out, "Your reply: ")
		reply, err := p.in.ReadLine(ctx)
		if err != nil {
			return "", err
		}
		if reply != "" {
			return reply, nil
		}
	}
}
