package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/castlemilk/finagent/internal/extraction"
	"github.com/castlemilk/finagent/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	ingestType    string
	ingestTimeout time.Duration
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.pdf>...",
	Short: "Add PDF statements to the finance profile",
	Long: `Extract, analyze and import each PDF: transactions go into the profile
ledger and the text is indexed for retrieval. Large documents are processed
as background jobs; ingest waits for them to finish.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	addRemoteFlags(ingestCmd)
	ingestCmd.Flags().StringVarP(&ingestType, "type", "t", "", "document type hint (credit_card, bank_statement, investment, tax_document, ...)")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 10*time.Minute, "how long to wait for each document")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	agent, closeFn, err := openAgent(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	out := cmd.OutOrStdout()
	var failed int
	for _, path := range args {
		resp, err := ingestFile(ctx, agent, path)
		if err != nil {
			failed++
			logger.Error("ingest failed", zap.String("path", path), zap.Error(err))
			fmt.Fprintf(out, "%s: failed: %v\n", filepath.Base(path), err)
			continue
		}
		if jsonOut {
			if err := printJSON(out, resp); err != nil {
				return err
			}
			continue
		}
		doc := resp.Document
		fmt.Fprintf(out, "%s: %s, %d pages, %d entries imported, %d chunks indexed (id %s)\n",
			doc.Filename, doc.DocumentType, doc.PageCount, doc.EntryCount, doc.ChunkCount, doc.ID)
		for _, insight := range doc.Insights {
			fmt.Fprintf(out, "  - %s\n", insight)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(args))
	}
	return nil
}

// ingestFile uploads one file and waits for its job when ingestion runs in
// the background.
func ingestFile(ctx context.Context, agent agentAPI, path string) (*service.UploadDocumentResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, ingestTimeout)
	defer cancel()

	resp, err := agent.UploadDocument(ctx, &service.UploadDocumentRequest{
		Filename:     filepath.Base(path),
		Data:         data,
		DocumentType: ingestType,
	})
	if err != nil {
		return nil, err
	}
	if resp.JobID == "" {
		return resp, nil
	}

	logger.Info("waiting for background ingestion", zap.String("job_id", resp.JobID), zap.Int("pages", resp.Document.PageCount))
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		job, err := agent.GetIngestionJob(ctx, &service.GetIngestionJobRequest{JobID: resp.JobID})
		if err != nil {
			return nil, err
		}
		switch job.Job.Status {
		case extraction.JobCompleted:
			doc, err := agent.GetDocument(ctx, &service.GetDocumentRequest{ID: resp.Document.ID})
			if err != nil {
				return nil, err
			}
			resp.Document = doc.Document
			resp.Status = job.Job.Status
			return resp, nil
		case extraction.JobFailed:
			return nil, fmt.Errorf("ingestion job failed: %s", job.Job.Error)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
