// ABOUTME: Cobra command tree for facectl
// ABOUTME: Each command opens one gRPC connection and prints text or JSON

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/face-gateway/internal/rpc"
)

const defaultAddr = "localhost:50061"

type options struct {
	addr    string
	timeout time.Duration
	json    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "facectl",
		Short:         "facectl controls faces on a face-gateway",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	addr := os.Getenv("FACE_GATEWAY_ADDR")
	if addr == "" {
		addr = defaultAddr
	}
	root.PersistentFlags().StringVar(&opts.addr, "addr", addr, "Gateway gRPC address")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Per-command timeout")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Print JSON output")

	root.AddCommand(
		kindsCmd(opts),
		listCmd(opts),
		createCmd(opts),
		readCmd(opts),
		destroyCmd(opts),
		startCmd(opts),
		awaitCmd(opts),
		cancelCmd(opts),
		statusCmd(opts),
		runCmd(opts),
	)
	return root
}

// withClient dials the gateway and runs fn under the command timeout.
func withClient(cmd *cobra.Command, opts *options, fn func(ctx context.Context, c *rpc.Client) error) error {
	client, err := rpc.Dial(opts.addr)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}
	return fn(ctx, client)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func kindsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the face kinds this gateway can create",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *rpc.Client) error {
				list, err := c.ListFaces(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.json {
					return printJSON(out, list.FaceKinds)
				}
				for _, k := range list.FaceKinds {
					fmt.Fprintf(out, "%-8s %s\n", k.ID, k.Title)
				}
				return nil
			})
		},
	}
}

func listCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List live faces",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *rpc.Client) error {
				list, err := c.ListFaces(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.json {
					return printJSON(out, list.LiveFaces)
				}
				gray := color.New(color.FgHiBlack)
				for _, f := range list.LiveFaces {
					fmt.Fprintf(out, "%-36s %-6s %3d ", f.ID, f.Kind, f.Status.Interactions)
					gray.Fprintln(out, f.CreatedAt.Local().Format(time.DateTime))
				}
				return nil
			})
		},
	}
}

// parseConfig turns repeated key=value flags into a face config map.
// Values that parse as JSON keep their JSON type.
func parseConfig(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	cfg := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("config %q: expected key=value", p)
		}
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			cfg[k] = parsed
		} else {
			cfg[k] = v
		}
	}
	return cfg, nil
}

func createCmd(opts *options) *cobra.Command {
	var home, workspace string
	var config []string

	cmd := &cobra.Command{
		Use:   "create <kind>",
		Short: "Create a face of the given kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := parseConfig(config)
			if err != nil {
				return err
			}
			return withClient(cmd, opts, func(ctx context.Context, c *rpc.Client) error {
				id, err := c.CreateFace(ctx, rpc.CreateFaceRequest{
					KindID:    args[0],
					Home:      home,
					Workspace: workspace,
					Config:    cfg,
				})
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), rpc.CreateFaceResponse{FaceID: id})
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&home, "home", "", "Home directory for the face")
	cmd.Flags().StringVar(&workspace, "workspace", "", "Workspace directory for the face")
	cmd.Flags().StringArrayVarP(&config, "config", "c", nil, "Kind-specific config key=value (repeatable)")
	return cmd
}

func readCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "read <face-id>",
		Short: "Show a face and its status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *rpc.Client) error {
				d, err := c.ReadFace(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if opts.json {
					return printJSON(out, d)
				}
				fmt.Fprintf(out, "id:           %s\n", d.ID)
				fmt.Fprintf(out, "kind:         %s\n", d.Kind)
				if d.Home != "" {
					fmt.Fprintf(out, "home:         %s\n", d.Home)
				}
				if d.Workspace != "" {
					fmt.Fprintf(out, "workspace:    %s\n", d.Workspace)
				}
				fmt.Fprintf(out, "interactions: %d\n", d.Status.Interactions)
				for _, v := range d.Views {
					fmt.Fprintf(out, "view:         %s %s\n", v.Name, v.URL)
				}
				return nil
			})
		},
	}
}

func destroyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "destroy <face-id>",
		Aliases: []string{"rm"},
		Short:   "Destroy a face",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *rpc.Client) error {
				if err := c.DestroyFace(ctx, args[0]); err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), rpc.DestroyFaceResponse{Deleted: true})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "destroyed %s\n", args[0])
				return nil
			})
		},
	}
}

func startCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "start <face-id> <input>",
		Short: "Start an interaction and print its id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *rpc.Client) error {
				iid, err := c.InteractionStart(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), rpc.InteractionStartResponse{InteractionID: iid})
				}
				fmt.Fprintln(cmd.OutOrStdout(), iid)
				return nil
			})
		},
	}
}

func awaitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "await <face-id> <interaction-id>",
		Short: "Wait for an interaction and print its output",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *rpc.Client) error {
				output, err := c.InteractionAwait(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), rpc.InteractionAwaitResponse{InteractionID: args[1], Value: output})
				}
				fmt.Fprintln(cmd.OutOrStdout(), output)
				return nil
			})
		},
	}
}

func cancelCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <face-id> <interaction-id>",
		Short: "Cancel an interaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *rpc.Client) error {
				res, err := c.InteractionCancel(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cancelled=%t was_active=%t\n", res.Cancelled, res.WasActive)
				return nil
			})
		},
	}
}

func statusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <face-id> <interaction-id>",
		Short: "Show the state of an interaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *rpc.Client) error {
				state, err := c.InteractionStatus(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), rpc.InteractionStatusResponse{InteractionID: args[1], State: state})
				}
				fmt.Fprintln(cmd.OutOrStdout(), state)
				return nil
			})
		},
	}
}

func runCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run <face-id> <input>",
		Short: "Start an interaction and wait for its output",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *rpc.Client) error {
				iid, err := c.InteractionStart(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				output, err := c.InteractionAwait(ctx, args[0], iid)
				if err != nil {
					// Leave nothing running when the wait is abandoned.
					_, _ = c.InteractionCancel(context.Background(), args[0], iid)
					return err
				}
				if opts.json {
					return printJSON(cmd.OutOrStdout(), rpc.InteractionAwaitResponse{InteractionID: iid, Value: output})
				}
				fmt.Fprintln(cmd.OutOrStdout(), output)
				return nil
			})
		},
	}
}
