// Command lumos-release packages the Lumos tools as a universal macOS
// release: per-architecture builds, lipo merge, resources, install script,
// README, tarball and checksum.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"lumos/internal/logger"
	"lumos/internal/release"
	"lumos/internal/runner"
)

type options struct {
	root     string
	version  string
	publish  bool
	parallel bool
	debug    bool
}

func newRootCmd(getenv func(string) string, inv runner.Invoker) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "lumos-release",
		Short:         "Build and package a universal macOS release",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts.debug)

			dir, err := filepath.Abs(opts.root)
			if err != nil {
				return err
			}
			spec, err := release.LoadSpec(dir)
			if err != nil {
				return err
			}
			if opts.version != "" {
				spec.Version = opts.version
			}
			if cmd.Flags().Changed("parallel") {
				spec.Parallel = opts.parallel
			}

			pkg := release.New(dir, spec, inv, log)
			if opts.publish {
				cfg, err := release.LoadS3Config(dir, getenv)
				if err != nil {
					return err
				}
				up, err := release.NewS3Uploader(cfg)
				if err != nil {
					return err
				}
				pkg.Uploader = up
			}

			_, err = pkg.Run(cmd.Context())
			return err
		},
	}

	root.Flags().StringVar(&opts.root, "root", ".", "Source tree to package")
	root.Flags().StringVar(&opts.version, "version", "", "Override the release version")
	root.Flags().BoolVar(&opts.publish, "publish", false, "Upload the archive and checksum to the configured S3 bucket")
	root.Flags().BoolVar(&opts.parallel, "parallel", false, "Build architectures concurrently")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	root.AddCommand(verifyCmd())
	return root
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <archive>",
		Short: "Check an archive against its .sha256 file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := release.Verify(args[0]); err != nil {
				return err
			}
			logger.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), false).Success("%s: OK\n", filepath.Base(args[0]))
			return nil
		},
	}
}

func run(ctx context.Context, args []string, out, errOut io.Writer, getenv func(string) string, inv runner.Invoker) int {
	root := newRootCmd(getenv, inv)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	log := logger.New(out, errOut, false)
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		log.Error("\n\nBuild interrupted by user\n")
		return 130
	}
	log.Error("\n\nError: %v\n", err)

	var missing *release.MissingArtifact
	if errors.As(err, &missing) {
		fmt.Fprintf(errOut, "Check that every executable in %s is produced by the build.\n", release.SpecFile)
	}
	return 1
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv, runner.ExecInvoker{})
	stop()
	os.Exit(code)
}
