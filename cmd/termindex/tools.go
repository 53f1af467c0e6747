package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/termindex/pkg/config"
	"github.com/hazyhaar/termindex/pkg/mcpquic"
	"github.com/hazyhaar/termindex/pkg/textnorm"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func newNormalizeCmd() *cobra.Command {
	var mode, lang string

	cmd := &cobra.Command{
		Use:   "normalize [text...]",
		Short: "Print search keys for the arguments, or for each stdin line",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !textnorm.IsMode(mode) {
				return fmt.Errorf("unknown mode %q", mode)
			}
			norm := textnorm.GetNormalizerForLanguage(mode, lang)
			out := cmd.OutOrStdout()

			if len(args) > 0 {
				for _, a := range args {
					fmt.Fprintln(out, norm(a))
				}
				return nil
			}
			return normalizeLines(cmd.InOrStdin(), out, norm)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", textnorm.ModeSearchIndex, "search_index, lowercase_ascii, upper or none")
	cmd.Flags().StringVar(&lang, "lang", "", "BCP 47 casing language for search_index")
	return cmd
}

func normalizeLines(r io.Reader, w io.Writer, norm textnorm.Normalizer) error {
	scanner := bufio.NewScanner(textnorm.NewBOMSkippingReader(r))
	for scanner.Scan() {
		line := textnorm.ChompTrailing(scanner.Text(), '\r')
		if _, err := fmt.Fprintln(w, norm(line)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func newMCPCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			// stdout carries JSON-RPC; logs go to stderr.
			logger := config.NewLogger(cfg.Log, os.Stderr)
			reg, err := loadRegistry(cfg, logger)
			if err != nil {
				return err
			}
			return server.ServeStdio(newMCPServer(reg, logger))
		},
	}
}

func newCallCmd() *cobra.Command {
	var (
		addr     string
		strArgs  []string
		numArgs  []string
		insecure bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "call [tool]",
		Short: "Call an MCP tool on a server over QUIC, or list tools",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			c := mcpquic.NewClient(addr, mcpquic.ClientTLSConfig(insecure))
			if err := c.Connect(ctx); err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				res, err := c.ListTools(ctx)
				if err != nil {
					return err
				}
				for _, t := range res.Tools {
					fmt.Fprintf(out, "%-20s %s\n", t.Name, t.Description)
				}
				return nil
			}

			toolArgs, err := parseToolArgs(strArgs, numArgs)
			if err != nil {
				return err
			}
			res, err := c.CallTool(ctx, args[0], toolArgs)
			if err != nil {
				return err
			}
			for _, content := range res.Content {
				if tc, ok := mcp.AsTextContent(content); ok {
					fmt.Fprintln(out, prettyJSON(tc.Text))
				}
			}
			if res.IsError {
				return fmt.Errorf("tool %s returned an error", args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8420", "server QUIC address")
	cmd.Flags().StringArrayVar(&strArgs, "arg", nil, "string argument key=value (repeatable)")
	cmd.Flags().StringArrayVar(&numArgs, "num", nil, "number argument key=value (repeatable)")
	cmd.Flags().BoolVar(&insecure, "insecure", true, "skip server certificate verification")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall call timeout")
	return cmd
}

// parseToolArgs builds tool arguments from key=value pairs.
func parseToolArgs(strArgs, numArgs []string) (map[string]any, error) {
	out := make(map[string]any, len(strArgs)+len(numArgs))
	for _, kv := range strArgs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --arg %q, want key=value", kv)
		}
		out[k] = v
	}
	for _, kv := range numArgs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --num %q, want key=value", kv)
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --num %q: %w", kv, err)
		}
		out[k] = n
	}
	return out, nil
}

func prettyJSON(s string) string {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return s
	}
	return string(b)
}
