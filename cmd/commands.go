package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-rag/internal/chunkstore"
	"pdf-rag/internal/config"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/ingest"
	"pdf-rag/internal/metrics"
	"pdf-rag/internal/render"
	"pdf-rag/internal/server"
)

func serveCMD(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := newComponents(c.cfg)
			if err != nil {
				return err
			}
			defer comp.Close()

			pipeline, err := comp.newPipeline()
			if err != nil {
				return err
			}
			retriever, err := comp.newRetriever()
			if err != nil {
				return err
			}
			srv := server.NewServer(pipeline, retriever, metrics.New(), &c.cfg.Server)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
}

func ingestCMD(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <pdf>...",
		Short: "Extract, chunk and index PDF files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := ingest.FileSources(args)

			comp, err := newComponents(c.cfg)
			if err != nil {
				return err
			}
			defer comp.Close()
			pipeline, err := comp.newPipeline()
			if err != nil {
				return err
			}

			report, err := pipeline.Ingest(cmd.Context(), sources)
			if err != nil {
				return err
			}
			helper.PrettyPrint(report)
			if report.DocumentsIndexed == 0 {
				return report.FirstError()
			}
			return nil
		},
	}
}

func askCMD(c *cli) *cobra.Command {
	var asJSON, asHTML bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := newComponents(c.cfg)
			if err != nil {
				return err
			}
			defer comp.Close()
			retriever, err := comp.newRetriever()
			if err != nil {
				return err
			}

			ans, err := retriever.Answer(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(ans)
			case asHTML:
				html, err := render.HTML(ans.Answer)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, html)
			default:
				fmt.Fprintf(out, "%s\n\n", ans.Answer)
				for i, src := range ans.Sources {
					fmt.Fprintf(out, "[%d] %s p.%d #%d (distance %.4f)\n", i+1, src.Filename, src.PageIndex, src.ChunkIndex, src.Score)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer and sources as JSON")
	cmd.Flags().BoolVar(&asHTML, "html", false, "print the answer rendered as HTML")
	cmd.MarkFlagsMutuallyExclusive("json", "html")
	return cmd
}

func reindexCMD(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex <chunks.json>...",
		Short: "Index saved chunk files without extracting again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := newComponents(c.cfg)
			if err != nil {
				return err
			}
			defer comp.Close()
			ix := comp.newIndexer()

			for _, path := range args {
				if c.cfg.RAG.ReindexPolicy == config.ReindexReplace {
					if err := deleteChunkFileRecords(cmd.Context(), comp, path); err != nil {
						return err
					}
				}
				res, err := ix.IndexFile(cmd.Context(), path)
				if err != nil {
					return err
				}
				helper.PrettyPrint(res)
			}
			return nil
		},
	}
}

// deleteChunkFileRecords removes the vectors of every filename listed in a chunk file.
func deleteChunkFileRecords(ctx context.Context, comp *components, path string) error {
	chunks, err := chunkstore.Load(path)
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, ch := range chunks {
		if seen[ch.Filename] {
			continue
		}
		seen[ch.Filename] = true
		if err := comp.store.DeleteByFilename(ctx, ch.Filename); err != nil {
			return err
		}
	}
	return nil
}

func exportCMD(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Back up the chromem collection to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := newComponents(c.cfg)
			if err != nil {
				return err
			}
			defer comp.Close()
			m, err := comp.chromemStore()
			if err != nil {
				return err
			}
			if err := m.Export(args[0], c.cfg.Storage.EncryptionKey); err != nil {
				return err
			}
			log.Info().Str("file", args[0]).Str("collection", m.Name()).Msg("Exported collection")
			return nil
		},
	}
}

func importCMD(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Restore the chromem collection from a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := newComponents(c.cfg)
			if err != nil {
				return err
			}
			defer comp.Close()
			m, err := comp.chromemStore()
			if err != nil {
				return err
			}
			if err := m.Import(args[0], c.cfg.Storage.EncryptionKey); err != nil {
				return err
			}
			n, err := m.Count(cmd.Context())
			if err != nil {
				return err
			}
			log.Info().Str("file", args[0]).Int("records", n).Msg("Imported collection")
			return nil
		},
	}
}

func dropCMD(c *cli) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Delete the vector collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to drop the collection without --yes")
			}
			comp, err := newComponents(c.cfg)
			if err != nil {
				return err
			}
			defer comp.Close()
			d, ok := comp.store.(dropper)
			if !ok {
				return fmt.Errorf("backend %s cannot drop collections", c.cfg.Storage.Backend)
			}
			if err := d.Drop(cmd.Context()); err != nil {
				return err
			}
			log.Info().Str("collection", comp.store.Name()).Msg("Dropped collection")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting every vector record")
	return cmd
}
