package execution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anef/pdfcp/internal/config"
	"github.com/anef/pdfcp/pkg/comparative"
	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

var ErrHostedUnavailable = errors.New("hosted store unavailable")
var ErrNotConfigured = errors.New("hosted store url is not configured")

const restPath = "/rest/v1/"

// Client reads the executed side of a programme from the hosted store.
type Client interface {
	// ListExecutedLines returns the actions recorded in state EXECUTE for the programme.
	ListExecutedLines(ctx context.Context, programId string) ([]comparative.ExecutedLine, error)
	// ListRealisations returns the mapped field realisations, each linked to a planned line.
	ListRealisations(ctx context.Context, programId string) ([]comparative.ExecutedLine, error)
	// ListAlerts returns the field alerts (conflicts and oppositions) raised on the programme.
	ListAlerts(ctx context.Context, programId string) ([]comparative.Alert, error)
}

type ClientImpl struct {
	baseUrl    string
	apiKey     string
	httpClient *http.Client
	retries    uint64
	newBackOff func() backoff.BackOff
}

func NewClient(cfg config.Hosted) *ClientImpl {
	base := &http.Client{Timeout: cfg.Timeout}
	httpClient := base
	if cfg.ApiKey != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.ApiKey,
			TokenType:   "Bearer",
		}))
		httpClient.Timeout = cfg.Timeout
	}
	return &ClientImpl{
		baseUrl:    strings.TrimRight(cfg.Url, "/"),
		apiKey:     cfg.ApiKey,
		httpClient: httpClient,
		retries:    cfg.Retries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

type actionRecord struct {
	Id               string              `json:"id"`
	ProgramId        string              `json:"pdfcp_id"`
	ActionKey        string              `json:"action_key"`
	Year             int                 `json:"year"`
	Unit             string              `json:"unite"`
	Physical         decimal.NullDecimal `json:"physique"`
	Financial        decimal.NullDecimal `json:"financier"`
	SourcePlanLineId *string             `json:"source_plan_line_id"`
	SourceCpLineId   *string             `json:"source_cp_line_id"`
	Status           *string             `json:"statut_execution"`
	RealisedAt       *string             `json:"date_realisation"`
}

type realisationRecord struct {
	Id              string              `json:"id"`
	ProgramId       string              `json:"pdfcp_id"`
	PlannedActionId string              `json:"planned_action_id"`
	ActionType      string              `json:"action_type"`
	SurfaceHa       decimal.NullDecimal `json:"surface_realisee_ha"`
	LengthKm        decimal.NullDecimal `json:"longueur_realisee_km"`
	Status          *string             `json:"statut"`
	RealisedAt      *string             `json:"date_realisation"`
}

type conflictRecord struct {
	Id           string  `json:"id"`
	ProgramId    *string `json:"pdfcp_id"`
	LocationText *string `json:"location_text"`
	Status       *string `json:"conflict_status"`
	ReportedDate string  `json:"reported_date"`
}

func (c *ClientImpl) ListExecutedLines(ctx context.Context, programId string) ([]comparative.ExecutedLine, error) {
	query := url.Values{}
	query.Set("select", "id,pdfcp_id,action_key,year,unite,physique,financier,source_plan_line_id,source_cp_line_id,statut_execution,date_realisation")
	query.Set("pdfcp_id", "eq."+programId)
	query.Set("etat", "eq.EXECUTE")
	query.Set("order", "year.asc")

	var records []actionRecord
	if err := c.get(ctx, "pdfcp_actions", query, &records); err != nil {
		return nil, err
	}

	lines := make([]comparative.ExecutedLine, 0, len(records))
	for _, r := range records {
		line := comparative.ExecutedLine{
			Id:               r.Id,
			PlannedLineId:    deref(r.SourcePlanLineId),
			ProgrammedLineId: deref(r.SourceCpLineId),
			Year:             r.Year,
			Quantity:         r.Physical.Decimal,
			Unit:             r.Unit,
			Cost:             r.Financial.Decimal,
			Status:           deref(r.Status),
			RealisedAt:       parseDate(r.RealisedAt),
		}
		if strings.EqualFold(r.Unit, "km") {
			line.Length = r.Physical.Decimal
		}
		lines = append(lines, line)
	}
	log.Debugf("Loaded %d executed lines for programme %s", len(lines), programId)
	return lines, nil
}

func (c *ClientImpl) ListRealisations(ctx context.Context, programId string) ([]comparative.ExecutedLine, error) {
	query := url.Values{}
	query.Set("select", "id,pdfcp_id,planned_action_id,action_type,surface_realisee_ha,longueur_realisee_km,statut,date_realisation")
	query.Set("pdfcp_id", "eq."+programId)
	query.Set("order", "date_realisation.asc.nullslast")

	var records []realisationRecord
	if err := c.get(ctx, "pdfcp_actions_geo", query, &records); err != nil {
		return nil, err
	}

	lines := make([]comparative.ExecutedLine, 0, len(records))
	for _, r := range records {
		realisedAt := parseDate(r.RealisedAt)
		line := comparative.ExecutedLine{
			Id:            r.Id,
			PlannedLineId: r.PlannedActionId,
			Quantity:      r.SurfaceHa.Decimal,
			Length:        r.LengthKm.Decimal,
			Status:        deref(r.Status),
			RealisedAt:    realisedAt,
		}
		if realisedAt != nil {
			line.Year = realisedAt.Year()
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (c *ClientImpl) ListAlerts(ctx context.Context, programId string) ([]comparative.Alert, error) {
	query := url.Values{}
	query.Set("select", "id,pdfcp_id,location_text,conflict_status,reported_date")
	query.Set("pdfcp_id", "eq."+programId)

	var records []conflictRecord
	if err := c.get(ctx, "conflicts", query, &records); err != nil {
		return nil, err
	}

	alerts := make([]comparative.Alert, 0, len(records))
	for _, r := range records {
		alert := comparative.Alert{
			Id:     r.Id,
			Zone:   deref(r.LocationText),
			Status: deref(r.Status),
		}
		if reported := parseDate(&r.ReportedDate); reported != nil {
			alert.Year = reported.Year()
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// get fetches a table through the REST endpoint and decodes the JSON array into out.
// Server errors and transport failures are retried; 4xx answers are not.
func (c *ClientImpl) get(ctx context.Context, table string, query url.Values, out any) error {
	if c.baseUrl == "" {
		return ErrNotConfigured
	}
	endpoint := c.baseUrl + restPath + table + "?" + query.Encode()

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("apikey", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request %s: %w", table, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(fmt.Errorf("hosted store answered %d for %s: %s", resp.StatusCode, table, msg))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("hosted store answered %d for %s", resp.StatusCode, table)
		}
		body, err = io.ReadAll(resp.Body)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.retries), ctx)
	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		log.Warnf("hosted store request failed, retrying in %s: %v", wait, err)
	})
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrHostedUnavailable, err)
		log.Error(err)
		return err
	}

	if err := sonic.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrHostedUnavailable, table, err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// parseDate accepts a date or a full timestamp; anything else yields nil.
func parseDate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t
		}
	}
	log.Debugf("ignoring unparseable date %q", *s)
	return nil
}
