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
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/fatih/color"

	"github.com/kadirpekel/parley/pkg/client"
)

// ChatCmd runs the interactive console.
type ChatCmd struct {
	RemoteFlags `embed:""`

	KeepContext bool `help:"Send every query in the same conversation context instead of starting a new one."`
}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx := context.Background()

	sess, err := c.connect(ctx, cli)
	if err != nil {
		return err
	}
	defer sess.Close()

	con := newConsole(os.Stdin, os.Stdout)
	con.describe(sess.card)
	return con.loop(ctx, sess, c.KeepContext, interruptible)
}

// interruptible derives a context canceled by Ctrl-C.
func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}

// console renders a conversation on a terminal.
type console struct {
	out io.Writer
	in  *lineReader

	info     *color.Color
	progress *color.Color
	result   *color.Color
	question *color.Color
	warn     *color.Color
	fail     *color.Color
}

func newConsole(in io.Reader, out io.Writer) *console {
	return &console{
		out:      out,
		in:       newLineReader(in),
		info:     color.New(color.FgCyan),
		progress: color.New(color.Faint),
		result:   color.New(color.FgGreen),
		question: color.New(color.FgYellow),
		warn:     color.New(color.FgYellow),
		fail:     color.New(color.FgRed),
	}
}

func (c *console) describe(card *a2a.AgentCard) {
	fmt.Fprintf(c.out, "Connected to %s", card.Name)
	if card.Description != "" {
		fmt.Fprintf(c.out, ": %s", card.Description)
	}
	fmt.Fprintln(c.out)
	if client.SupportsStreaming(card) {
		fmt.Fprintln(c.out, "Streaming: supported")
	} else {
		c.warn.Fprintln(c.out, "Streaming: not supported, falling back to blocking requests")
	}
	fmt.Fprintln(c.out, "Type 'exit' to quit.")
}

func (c *console) conversation(sess *session) *client.Conversation {
	return client.NewConversation(sess.sender,
		&consolePrompter{out: c.out, in: c.in, question: c.question},
		client.WithTracer(sess.tracer),
		client.WithObserver(client.ObserverFuncs{
			Progress: func(p client.Progress) {
				if p.Text != "" {
					c.progress.Fprintln(c.out, p.Text)
				}
			},
			Event: func(e a2a.Event) {
				slog.Debug("Event received", "type", fmt.Sprintf("%T", e))
			},
		}),
	)
}

// loop reads queries until exit or end of input. Every query starts a new
// conversation unless keepContext is set.
func (c *console) loop(ctx context.Context, sess *session, keepContext bool, turnContext func(context.Context) (context.Context, context.CancelFunc)) error {
	conv := c.conversation(sess)
	for {
		fmt.Fprint(c.out, "> ")
		line, err := c.in.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(c.out)
			return nil
		}
		if err != nil {
			return err
		}

		switch strings.ToLower(line) {
		case "exit", "quit", "q":
			return nil
		case "":
			fmt.Fprintln(c.out, "Please enter a query.")
			continue
		}

		if !keepContext {
			conv.Reset()
		}
		c.info.Fprintf(c.out, "Processing: %s\n", line)

		turnCtx, stop := turnContext(ctx)
		res, err := conv.Converse(turnCtx, line)
		stop()

		switch {
		case err != nil:
			c.fail.Fprintf(c.out, "Stream error: %v\n", err)
		case res == nil:
			// Interrupted. A question left unanswered must not swallow the next query.
			conv.DropTask()
			fmt.Fprintln(c.out)
		default:
			c.result.Fprintln(c.out, res.Text)
		}
	}
}
