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
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kadirpekel/parley/pkg/client"
)

// AskCmd sends one query and prints the result. Questions from the agent
// are answered from stdin.
type AskCmd struct {
	RemoteFlags `embed:""`

	Query   []string `arg:"" help:"Query text."`
	Context string   `name:"context-id" help:"Continue an existing conversation."`
	Quiet   bool     `short:"q" help:"Print only the result."`
}

func (c *AskCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess, err := c.connect(ctx, cli)
	if err != nil {
		return err
	}
	defer sess.Close()

	con := newConsole(os.Stdin, os.Stderr)
	opts := []client.Option{
		client.WithTracer(sess.tracer),
		client.WithState(client.State{ContextID: c.Context}),
	}
	if !c.Quiet {
		opts = append(opts, client.WithObserver(client.ObserverFuncs{
			Progress: func(p client.Progress) {
				if p.Text != "" {
					con.progress.Fprintln(con.out, p.Text)
				}
			},
		}))
	}
	prompter := &consolePrompter{out: con.out, in: con.in, question: con.question}
	conv := client.NewConversation(sess.sender, prompter, opts...)

	res, err := conv.Converse(ctx, strings.Join(c.Query, " "))
	if err != nil {
		return err
	}
	if res == nil {
		return errors.New("interrupted")
	}

	fmt.Println(res.Text)
	if !c.Quiet {
		fmt.Fprintf(os.Stderr, "context: %s\n", res.State.ContextID)
	}
	return nil
}
