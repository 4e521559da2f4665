// Package archive uploads ledger snapshots to S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"qsteel/internal/ledger"
	"qsteel/internal/model"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Snapshot describes one uploaded chain export.
type Snapshot struct {
	Bucket   string    `json:"bucket"`
	Object   string    `json:"object"`
	Length   int       `json:"length"`
	TipHash  string    `json:"tipHash"`
	Verified bool      `json:"verified"`
	Size     int64     `json:"size"`
	TakenAt  time.Time `json:"takenAt"`
}

type document struct {
	TakenAt      time.Time           `json:"takenAt"`
	Length       int                 `json:"length"`
	TipHash      string              `json:"tipHash"`
	Verification ledger.Verification `json:"verification"`
	Chain        []model.LedgerBlock `json:"chain"`
}

type Archiver struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

func New(cfg Config) (*Archiver, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("minio endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		bucket = "qsteel-ledger"
	}
	return &Archiver{client: client, bucket: bucket, now: time.Now}, nil
}

// Archive verifies blocks and uploads them as a single JSON object. A broken
// chain is still archived with its verification result attached.
func (a *Archiver) Archive(ctx context.Context, blocks []model.LedgerBlock) (Snapshot, error) {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return Snapshot{}, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return Snapshot{}, fmt.Errorf("make bucket: %w", err)
		}
	}

	body, snap, err := encode(blocks, a.now().UTC())
	if err != nil {
		return Snapshot{}, err
	}
	snap.Bucket = a.bucket
	_, err = a.client.PutObject(ctx, a.bucket, snap.Object, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return Snapshot{}, fmt.Errorf("put %s: %w", snap.Object, err)
	}
	return snap, nil
}

func encode(blocks []model.LedgerBlock, at time.Time) ([]byte, Snapshot, error) {
	tip := ledger.GenesisHash
	if n := len(blocks); n > 0 {
		tip = blocks[n-1].Hash
	}
	if blocks == nil {
		blocks = []model.LedgerBlock{}
	}
	v := ledger.Verify(blocks)
	body, err := json.Marshal(document{TakenAt: at, Length: len(blocks), TipHash: tip, Verification: v, Chain: blocks})
	if err != nil {
		return nil, Snapshot{}, err
	}
	return body, Snapshot{
		Object:   objectName(at, tip),
		Length:   len(blocks),
		TipHash:  tip,
		Verified: v.OK,
		Size:     int64(len(body)),
		TakenAt:  at,
	}, nil
}

// objectName groups snapshots by day: ledger/2025/09/20/<unixms>-<tip prefix>.json
func objectName(at time.Time, tip string) string {
	if len(tip) > 12 {
		tip = tip[:12]
	}
	return fmt.Sprintf("ledger/%s/%d-%s.json", at.Format("2006/01/02"), at.UnixMilli(), tip)
}
