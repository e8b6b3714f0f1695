package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tahirrasheed89/newsreap/internal/app"
	"github.com/tahirrasheed89/newsreap/internal/codec"
	"github.com/tahirrasheed89/newsreap/internal/content"
	"github.com/tahirrasheed89/newsreap/internal/infra/config"
	"github.com/tahirrasheed89/newsreap/internal/infra/logger"
	"github.com/tahirrasheed89/newsreap/internal/nntp"
	"github.com/tahirrasheed89/newsreap/internal/nzb"
	"github.com/tahirrasheed89/newsreap/internal/yenc"
)

var (
	cfgPath string
	outDir  string

	appCtx *app.Context
)

var rootCmd = &cobra.Command{
	Use:   "newsreap",
	Short: "newsreap is a Usenet content toolkit",
	Long:  `Encode, decode and index yEnc content the way it travels over NNTP.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
		if err != nil {
			return err
		}
		appCtx = app.NewContext(cfg, log)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appCtx != nil {
			appCtx.Close()
		}
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode <article>...",
	Short: "Decode yEnc articles and reassemble the files they carry",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, err := codec.NewPipeline(appCtx.CodecFactory())
		if err != nil {
			return err
		}

		// Decode everything first, then group parts by filename.
		byName := map[string][]*content.Binary{}
		var order []string
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			bin, derr := pipeline.Decode(f)
			f.Close()
			if derr != nil {
				return fmt.Errorf("%s: %w", path, derr)
			}
			if _, seen := byName[bin.Filename]; !seen {
				order = append(order, bin.Filename)
			}
			byName[bin.Filename] = append(byName[bin.Filename], bin)
			appCtx.Logger.Debug("decoded %s: part %d/%d, %d bytes, %s",
				path, bin.Part, bin.TotalParts, bin.Len(), bin.Validity)
		}

		asm := yenc.NewAssembler(yenc.AssemblerOptions{
			WorkDir:  appCtx.Config.Codec.WorkDir,
			MemLimit: appCtx.Config.Codec.MemLimit,
		})

		for _, name := range order {
			parts := byName[name]

			final := parts[0]
			if len(parts) > 1 || final.TotalParts > 1 {
				final, err = asm.Assemble(parts)
				for _, p := range parts {
					p.Close()
				}
				if err != nil {
					return err
				}
			}

			if err := writeBinary(final, name); err != nil {
				final.Close()
				return err
			}
			appCtx.Logger.Info("wrote %s (%d bytes, %s)", name, final.Len(), final.Validity)
			final.Close()
		}
		return nil
	},
}

var (
	encLine int
	encPart int64
	encName string
)

var encodeCmd = &cobra.Command{
	Use:   "encode <file>",
	Short: "Frame a file as one or more yEnc parts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := yenc.EncoderOptions{
			WorkDir:    appCtx.Config.Codec.WorkDir,
			MemLimit:   appCtx.Config.Codec.MemLimit,
			LineLength: appCtx.Config.Codec.LineLength,
			PartSize:   appCtx.Config.Codec.PartSize,
			Reference:  appCtx.Config.Codec.Reference,
			Name:       encName,
		}
		if encLine > 0 {
			opts.LineLength = encLine
		}
		if encPart > 0 {
			opts.PartSize = encPart
		}

		enc, err := yenc.NewEncoder(opts)
		if err != nil {
			return err
		}

		it, err := enc.PartsFile(args[0])
		if err != nil {
			return err
		}
		defer it.Close()

		base := filepath.Base(args[0])
		for {
			part, err := it.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}

			name := base + ".yenc"
			if part.TotalParts > 1 {
				name = fmt.Sprintf("%s.%03d.yenc", base, part.Part)
			}
			if err := writePart(part, name); err != nil {
				part.Close()
				return err
			}
			appCtx.Logger.Info("wrote %s (pcrc32=%08x)", name, part.PayloadCRC)
			part.Close()
		}
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.nzb>",
	Short: "List the files and segments an NZB announces",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := nzb.NewParser().ParseFile(args[0])
		if err != nil {
			return err
		}

		for _, f := range model.Files {
			name := f.Subject
			if s := yenc.ParseSubject(f.Subject); s != nil {
				name = s.Filename
			}
			fmt.Printf("%s\n  poster: %s  segments: %d  size: %d\n",
				name, f.Poster, len(f.Segments), f.TotalSize())
		}
		return nil
	},
}

var fetchServer string

var fetchCmd = &cobra.Command{
	Use:   "fetch <message-id>",
	Short: "Fetch one article body and decode it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := appCtx.Config.Server(fetchServer)
		if err != nil {
			return err
		}

		client := nntp.NewClient(server)
		defer client.Close()

		body, err := client.Body(args[0])
		if err != nil {
			return err
		}

		pipeline, err := codec.NewPipeline(appCtx.CodecFactory())
		if err != nil {
			return err
		}
		bin, err := pipeline.Decode(body)
		if err != nil {
			return err
		}
		defer bin.Close()

		if err := writeBinary(bin, bin.Filename); err != nil {
			return err
		}
		appCtx.Logger.Info("wrote %s (%d bytes, %s)", bin.Filename, bin.Len(), bin.Validity)
		return nil
	},
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage watched newsgroups",
}

var groupAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Watch a newsgroup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, err := appCtx.OpenStore()
		if err != nil {
			return err
		}
		return groups.AddGroup(context.Background(), args[0])
	},
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched newsgroups",
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, err := appCtx.OpenStore()
		if err != nil {
			return err
		}
		list, err := groups.ListGroups(context.Background())
		if err != nil {
			return err
		}
		for _, g := range list {
			fmt.Printf("%s  low=%d high=%d count=%d\n", g.Name, g.Low, g.High, g.Count)
		}
		return nil
	},
}

var groupUpdateServer string

var groupUpdateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Refresh a group's watermarks from the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, err := appCtx.OpenStore()
		if err != nil {
			return err
		}
		server, err := appCtx.Config.Server(groupUpdateServer)
		if err != nil {
			return err
		}

		client := nntp.NewClient(server)
		defer client.Close()

		count, low, high, err := client.Group(args[0])
		if err != nil {
			return err
		}
		if err := groups.SetWatermarks(context.Background(), args[0], low, high, count); err != nil {
			return err
		}
		appCtx.Logger.Info("group %s: low=%d high=%d count=%d", args[0], low, high, count)
		return nil
	},
}

// writeBinary streams a decoded payload into outDir.
func writeBinary(bin *content.Binary, name string) error {
	if name == "" {
		name = "unknown.bin"
	}
	return writeOut(bin.Buffer, name)
}

func writePart(part *content.Ascii, name string) error {
	return writeOut(part.Buffer, name)
}

func writeOut(buf *content.Buffer, name string) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(outDir, name))
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := buf.WriteTo(f); err != nil {
		return err
	}
	return f.Sync()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to config.yaml")
	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", ".", "Output directory")

	encodeCmd.Flags().IntVar(&encLine, "line", 0, "Encoded line length [16-1024]")
	encodeCmd.Flags().Int64Var(&encPart, "part-size", 0, "Split input into parts of at most this many bytes")
	encodeCmd.Flags().StringVar(&encName, "name", "", "Advertised filename (defaults to the input name)")

	fetchCmd.Flags().StringVar(&fetchServer, "server", "", "Configured server ID (defaults to the first)")
	groupUpdateCmd.Flags().StringVar(&groupUpdateServer, "server", "", "Configured server ID (defaults to the first)")

	groupCmd.AddCommand(groupAddCmd, groupListCmd, groupUpdateCmd)
	rootCmd.AddCommand(decodeCmd, encodeCmd, inspectCmd, fetchCmd, groupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
