package cmd

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"terabox-go/internal"
	"terabox-go/terabox"
	"terabox-go/utils"
)

func newQuotaCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show storage usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.newClient()
			if err != nil {
				return err
			}

			ctx, cancel := opts.apiContext(cmd.Context())
			defer cancel()

			quota, err := client.Quota(ctx)
			if err != nil {
				return fmt.Errorf("failed to read quota: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Used:  %s (%d bytes)\n", utils.FormatBytes(quota.Used), quota.Used)
			fmt.Fprintf(out, "Total: %s (%d bytes)\n", utils.FormatBytes(quota.Total), quota.Total)
			fmt.Fprintf(out, "Free:  %s (%d bytes)\n", utils.FormatBytes(quota.Free), quota.Free)
			return nil
		},
	}
}

func newListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "ls [DIR]",
		Aliases: []string{"list"},
		Short:   "List a remote directory",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "/"
			if len(args) == 1 {
				dir = args[0]
			}

			client, err := opts.newClient()
			if err != nil {
				return err
			}

			ctx, cancel := opts.apiContext(cmd.Context())
			defer cancel()

			entries, err := client.List(ctx, dir)
			if err != nil {
				return fmt.Errorf("failed to list %s: %w", dir, err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, entry := range entries {
				kind := "-"
				if entry.IsDir() {
					kind = "d"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
					kind,
					entry.ID,
					utils.FormatBytes(entry.Size),
					entry.ModifyTime().UTC().Format(time.DateTime),
					entry.Name)
			}
			return w.Flush()
		},
	}
}

func newUploadCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <LOCAL_FILE> <REMOTE_PATH>",
		Short: "Upload a local file, overwriting the remote path",
		Long: `Upload a single local file. A REMOTE_PATH ending in / is treated as a
directory and the local file name is appended.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, remote := args[0], args[1]

			source, err := utils.NewFileOperations().StatUploadSource(local)
			if err != nil {
				if valErr, ok := err.(*internal.ValidationError); ok {
					internal.LogValidationError(valErr)
				}
				return err
			}
			if remote == "" || remote[len(remote)-1] == '/' {
				remote = path.Join("/", remote, source.Name)
			}

			client, err := opts.newClient()
			if err != nil {
				return err
			}

			tracker := utils.NewProgressTracker(source.Size, opts.config.QuietMode, "Uploading")
			entry, err := client.UploadFile(cmd.Context(), remote, local, terabox.WithProgress(tracker))
			tracker.Finish("")
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", entry.ID, entry.Path)
			return nil
		},
	}
}

func newDownloadCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "download <ID|PATH>...",
		Short: "Print direct download links",
		Long: `Print a direct download link for every argument. Numeric arguments are
file ids, anything else is a remote path.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.newClient()
			if err != nil {
				return err
			}

			refs := make([]terabox.FileRef, 0, len(args))
			for _, arg := range args {
				if _, err := strconv.ParseInt(arg, 10, 64); err == nil {
					refs = append(refs, terabox.IDString(arg))
					continue
				}

				entry, err := stat(cmd.Context(), opts, client, arg)
				if err != nil {
					return fmt.Errorf("failed to resolve %s: %w", arg, err)
				}
				refs = append(refs, entry)
			}

			ctx, cancel := opts.apiContext(cmd.Context())
			defer cancel()

			links, err := client.Download(ctx, refs...)
			if err != nil {
				return fmt.Errorf("failed to get download links: %w", err)
			}

			for _, link := range links {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", link.ID, link.Link)
			}
			return nil
		},
	}
}

func newGetCmd(opts *globalOptions) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "get <REMOTE_PATH>",
		Short: "Download a remote file to disk",
		Long: `Download a remote file. Data is written to <output>.part and renamed
once the transfer completes; an interrupted transfer leaves no output file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.newClient()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			entry, err := stat(ctx, opts, client, args[0])
			if err != nil {
				return fmt.Errorf("failed to resolve %s: %w", args[0], err)
			}
			if entry.IsDir() {
				return internal.NewArgumentError("remote path", entry.Path+" is a directory")
			}

			fileOps := utils.NewFileOperations()
			out := outputPath
			if out == "" {
				out = entry.Name
			} else if fileOps.IsDir(out) {
				out = filepath.Join(out, entry.Name)
			}

			linkCtx, cancel := opts.apiContext(ctx)
			link, err := entry.Download(linkCtx)
			cancel()
			if err != nil {
				return fmt.Errorf("failed to get download link: %w", err)
			}

			resp, err := client.OpenLink(ctx, link)
			if err != nil {
				return fmt.Errorf("download failed: %w", err)
			}
			defer resp.Body.Close()

			file, err := fileOps.CreatePartialFile(out)
			if err != nil {
				return err
			}

			tracker := utils.NewProgressTracker(entry.Size, opts.config.QuietMode, "Downloading")
			_, copyErr := io.Copy(tracker.WrapWriter(file), resp.Body)
			closeErr := file.Close()
			if copyErr == nil {
				copyErr = closeErr
			}
			if copyErr != nil {
				if err := fileOps.DiscardPartialFile(out); err != nil {
					internal.LogWarn("Failed to remove partial file: %v", err)
				}
				return fmt.Errorf("download failed: %w", copyErr)
			}

			if err := fileOps.CommitPartialFile(out); err != nil {
				return err
			}
			tracker.Finish(out)

			internal.LogInfo("Downloaded %s to %s", entry.Path, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file or directory (default: remote file name)")
	return cmd
}

func newMoveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "mv <SOURCE> <TARGET>",
		Aliases: []string{"move"},
		Short:   "Move or rename a remote file",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.newClient()
			if err != nil {
				return err
			}

			ctx, cancel := opts.apiContext(cmd.Context())
			defer cancel()

			if err := client.Move(ctx, map[string]string{args[0]: args[1]}); err != nil {
				return fmt.Errorf("move failed: %w", err)
			}
			internal.LogInfo("Moved %s to %s", args[0], args[1])
			return nil
		},
	}
}

func newRemoveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <PATH>...",
		Aliases: []string{"delete"},
		Short:   "Delete remote files",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.newClient()
			if err != nil {
				return err
			}

			targets := make([]terabox.PathRef, 0, len(args))
			for _, arg := range args {
				targets = append(targets, terabox.Path(arg))
			}

			ctx, cancel := opts.apiContext(cmd.Context())
			defer cancel()

			if err := client.Delete(ctx, targets...); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			internal.LogInfo("Deleted %d path(s)", len(targets))
			return nil
		},
	}
}

func newStreamCmd(opts *globalOptions) *cobra.Command {
	var quality string

	cmd := &cobra.Command{
		Use:   "stream <PATH>",
		Short: "Print the HLS playlist of a remote video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.newClient()
			if err != nil {
				return err
			}

			ctx, cancel := opts.apiContext(cmd.Context())
			defer cancel()

			playlist, err := client.Stream(ctx, args[0], terabox.Quality(quality))
			if err != nil {
				return fmt.Errorf("failed to get playlist: %w", err)
			}

			_, err = io.WriteString(cmd.OutOrStdout(), playlist)
			return err
		},
	}

	cmd.Flags().StringVar(&quality, "quality", string(terabox.DefaultQuality), "Stream profile (M3U8_AUTO_480, M3U8_AUTO_720)")
	return cmd
}

// stat resolves a remote path within a single API timeout.
func stat(ctx context.Context, opts *globalOptions, client *terabox.Client, remotePath string) (*terabox.Entry, error) {
	ctx, cancel := opts.apiContext(ctx)
	defer cancel()
	return client.Stat(ctx, remotePath)
}
