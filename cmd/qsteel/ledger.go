package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"qsteel/internal/archive"
	"qsteel/internal/ledger"
	"qsteel/internal/store"
)

var (
	errNoDatabase = errors.New("DATABASE_URL is not set; the ledger only persists in Postgres")
	errBroken     = errors.New("ledger chain is broken")
)

func openPostgres(a *app) (*store.Postgres, error) {
	if a.cfg.DatabaseURL == "" {
		return nil, errNoDatabase
	}
	return store.NewPostgres(a.cfg.DatabaseURL)
}

func newLedgerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the dispatch ledger in Postgres",
	}
	cmd.AddCommand(newLedgerVerifyCmd(a), newLedgerArchiveCmd(a))
	return cmd
}

func newLedgerVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Recompute every block hash and report the first break",
		RunE: func(cmd *cobra.Command, args []string) error {
			pg, err := openPostgres(a)
			if err != nil {
				return err
			}
			defer pg.Close()

			v, err := ledger.New(pg).Verify(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if v.OK {
				color.New(color.FgGreen, color.Bold).Fprint(out, "OK")
				fmt.Fprintf(out, "  %d blocks\n", v.Length)
				return nil
			}
			color.New(color.FgRed, color.Bold).Fprint(out, "BROKEN")
			if v.Index != nil {
				fmt.Fprintf(out, "  block %d of %d: %s\n", *v.Index, v.Length, v.Error)
			} else {
				fmt.Fprintf(out, "  %s\n", v.Error)
			}
			a.logger.Warn("ledger verification failed", zap.Int("length", v.Length), zap.String("error", v.Error))
			return errBroken
		},
	}
}

func newLedgerArchiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Upload a snapshot of the chain to object storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.MinIO.Enabled() {
				return errors.New("MINIO_ENDPOINT is not set")
			}
			pg, err := openPostgres(a)
			if err != nil {
				return err
			}
			defer pg.Close()

			blocks, err := ledger.New(pg).List(cmd.Context())
			if err != nil {
				return err
			}
			arc, err := archive.New(archive.Config{
				Endpoint:  a.cfg.MinIO.Endpoint,
				AccessKey: a.cfg.MinIO.AccessKey,
				SecretKey: a.cfg.MinIO.SecretKey,
				Bucket:    a.cfg.MinIO.Bucket,
				UseSSL:    a.cfg.MinIO.UseSSL,
			})
			if err != nil {
				return err
			}
			snap, err := arc.Archive(cmd.Context(), blocks)
			if err != nil {
				return err
			}
			a.logger.Info("ledger archived", zap.String("object", snap.Object), zap.Int("length", snap.Length))
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s  %d blocks  tip %s  verified=%t\n", snap.Bucket, snap.Object, snap.Length, snap.TipHash, snap.Verified)
			return nil
		},
	}
}
