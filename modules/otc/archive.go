package otc

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"
	cstream "github.com/planxnx/concurrent-stream"
	"github.com/samber/lo"

	otcconfig "github.com/tokendesk/otc-desk/modules/otc/config"
	"github.com/tokendesk/otc-desk/modules/otc/datagateway"
	"github.com/tokendesk/otc-desk/modules/otc/internal/entity"
	"github.com/tokendesk/otc-desk/pkg/logger"
	"github.com/tokendesk/otc-desk/pkg/logger/slogx"
	"github.com/tokendesk/otc-desk/pkg/parquetutils"
)

const defaultArchivePageSize = 1000

// Archiver exports executed deals to columnar files on S3 for offline
// compliance and analytics queries.
type Archiver struct {
	dg       datagateway.OTCDataGateway
	uploader *manager.Uploader
	config   otcconfig.ArchiveConfig
}

func NewArchiver(ctx context.Context, dg datagateway.OTCDataGateway, config otcconfig.ArchiveConfig) (*Archiver, error) {
	if config.Bucket == "" {
		return nil, errors.New("archive.bucket config is required if archiving is enabled")
	}
	if config.PageSize <= 0 {
		config.PageSize = defaultArchivePageSize
	}

	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "can't load aws user config")
	}
	s3Client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if config.Region != "" {
			o.Region = config.Region
		}
	})
	return &Archiver{
		dg:       dg,
		uploader: manager.NewUploader(s3Client),
		config:   config,
	}, nil
}

// archivedDeal is the parquet row layout of one executed deal.
type archivedDeal struct {
	ID            string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ConsignmentID string `parquet:"name=consignment_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	QuoteID       string `parquet:"name=quote_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	OfferID       string `parquet:"name=offer_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	TokenID       string `parquet:"name=token_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Chain         string `parquet:"name=chain, type=BYTE_ARRAY, convertedtype=UTF8"`
	BuyerAddress  string `parquet:"name=buyer_address, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount        string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	DiscountBps   int32  `parquet:"name=discount_bps, type=INT32"`
	LockupDays    int32  `parquet:"name=lockup_days, type=INT32"`
	CommissionBps int32  `parquet:"name=commission_bps, type=INT32"`
	ExecutedAt    int64  `parquet:"name=executed_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

// Export fetches every deal executed since the given time, in parallel
// pages, and uploads one parquet object. Returns the object key, or ""
// when there was nothing to export.
func (a *Archiver) Export(ctx context.Context, since time.Time) (string, error) {
	deals, err := a.fetchExecutedDeals(ctx, since)
	if err != nil {
		return "", errors.WithStack(err)
	}
	if len(deals) == 0 {
		return "", nil
	}

	rows := lo.Map(deals, func(deal entity.Deal, _ int) archivedDeal {
		return archivedDeal{
			ID:            deal.ID,
			ConsignmentID: deal.ConsignmentID,
			QuoteID:       deal.QuoteID,
			OfferID:       deal.OfferID,
			TokenID:       deal.TokenID,
			Chain:         deal.Chain.String(),
			BuyerAddress:  deal.BuyerAddress,
			Amount:        deal.Amount.String(),
			DiscountBps:   int32(deal.DiscountBps),
			LockupDays:    int32(deal.LockupDays),
			CommissionBps: int32(deal.CommissionBps),
			ExecutedAt:    deal.ExecutedAt.UnixMilli(),
		}
	})

	buffer := parquetutils.NewBuffer()
	if err := parquetutils.WriteAll(buffer, rows); err != nil {
		return "", errors.Wrap(err, "failed to encode deals to parquet")
	}

	key := a.objectKey()
	if _, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.config.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buffer.Bytes()),
	}); err != nil {
		return "", errors.Wrapf(err, "failed to upload archive to bucket %q", a.config.Bucket)
	}
	logger.InfoContext(ctx, "exported deal archive",
		slogx.String("key", key),
		slogx.Int("deals", len(deals)),
	)
	return key, nil
}

// fetchExecutedDeals pages through the executed-deal index with parallel
// workers. Pages are probed until the first short page; results are
// re-ordered by execution time before returning.
func (a *Archiver) fetchExecutedDeals(ctx context.Context, since time.Time) ([]entity.Deal, error) {
	out := make(chan []entity.Deal)
	stream := cstream.NewStream(ctx, 4, out)

	// a partial archive is worse than no archive, so the first fetch
	// failure poisons the whole export
	var exhausted atomic.Bool
	var fetchErr atomic.Pointer[error]

	go func() {
		defer close(out)
		_ = stream.Wait()
	}()

	go func() {
		defer stream.Close()
		const wave = 4
		for offset := 0; ; offset += wave * a.config.PageSize {
			if exhausted.Load() || ctx.Err() != nil {
				return
			}
			for i := 0; i < wave; i++ {
				pageOffset := offset + i*a.config.PageSize
				stream.Go(func() []entity.Deal {
					page, err := a.dg.ListExecutedDeals(ctx, datagateway.ListExecutedDealsParams{
						Since:  since,
						Limit:  a.config.PageSize,
						Offset: pageOffset,
					})
					if err != nil {
						err = errors.Wrapf(err, "failed to list executed deals at offset %d", pageOffset)
						fetchErr.CompareAndSwap(nil, &err)
						exhausted.Store(true)
						return nil
					}
					if len(page) < a.config.PageSize {
						exhausted.Store(true)
					}
					return page
				})
			}
		}
	}()

	var deals []entity.Deal
	for page := range out {
		deals = append(deals, page...)
	}
	if errPtr := fetchErr.Load(); errPtr != nil {
		return nil, *errPtr
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	sort.SliceStable(deals, func(i, j int) bool {
		return deals[i].ExecutedAt.Before(deals[j].ExecutedAt)
	})
	return deals, nil
}

func (a *Archiver) objectKey() string {
	prefix := a.config.Prefix
	if prefix == "" {
		prefix = "deals"
	}
	now := time.Now().UTC()
	return fmt.Sprintf("%s/dt=%s/deals-%s.parquet", prefix, now.Format("2006-01-02"), now.Format("20060102T150405Z"))
}
