package dnd5

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/abduss/grimoire/internal/config"
	"github.com/abduss/grimoire/internal/logger"
	"github.com/abduss/grimoire/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBaseURL = "https://www.dnd5eapi.co/api"
	DefaultTimeout = 30 * time.Second
	DefaultFanout  = 8

	maxBodyBytes = 4 << 20
)

// AbilityIndexes lists the valid ability score indexes.
var AbilityIndexes = []string{"cha", "con", "dex", "int", "str", "wis"}

// Reference is a page of index entries as returned by list endpoints.
type Reference struct {
	Count   int              `json:"count"`
	Results []ReferenceEntry `json:"results"`
}

// ReferenceEntry points at a single document.
type ReferenceEntry struct {
	Index string `json:"index"`
	Name  string `json:"name"`
	URL   string `json:"url"`
}

// Client reads documents from the D&D 5e SRD API. Documents are returned as
// raw JSON and optionally cached.
type Client struct {
	baseURL string
	http    *http.Client
	cache   Cache
	fanout  int
}

// NewClient builds a Client from cfg. A nil cache disables caching.
func NewClient(cfg config.ReferenceConfig, cache Cache) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	fanout := cfg.Fanout
	if fanout <= 0 {
		fanout = DefaultFanout
	}
	if cache == nil {
		cache = NopCache{}
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		cache:   cache,
		fanout:  fanout,
	}
}

// AbilityScores lists every ability score.
func (c *Client) AbilityScores(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/ability-scores")
}

// AbilityScore fetches one ability score. index is case-insensitive.
func (c *Client) AbilityScore(ctx context.Context, index string) (json.RawMessage, error) {
	index = strings.ToLower(index)
	if !slices.Contains(AbilityIndexes, index) {
		return nil, fmt.Errorf("%w: valid values are %s", ErrInvalidAbilityIndex, strings.Join(AbilityIndexes, ", "))
	}
	return c.get(ctx, "/ability-scores/"+index)
}

// Spells lists every spell.
func (c *Client) Spells(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/spells")
}

// Spell fetches one spell by index.
func (c *Client) Spell(ctx context.Context, index string) (json.RawMessage, error) {
	return c.get(ctx, "/spells/"+url.PathEscape(strings.ToLower(index)))
}

// SpellsByLevel returns the full documents of spells at level.
func (c *Client) SpellsByLevel(ctx context.Context, level int) ([]json.RawMessage, error) {
	if level < 0 || level > 9 {
		return nil, ErrInvalidSpellLevel
	}
	return c.filter(ctx, "/spells", func(doc json.RawMessage) (bool, error) {
		var spell struct {
			Level int `json:"level"`
		}
		if err := json.Unmarshal(doc, &spell); err != nil {
			return false, err
		}
		return spell.Level == level, nil
	})
}

// SpellsBySchool returns spells whose school name contains school,
// case-insensitively.
func (c *Client) SpellsBySchool(ctx context.Context, school string) ([]json.RawMessage, error) {
	needle := strings.ToLower(school)
	return c.filter(ctx, "/spells", func(doc json.RawMessage) (bool, error) {
		var spell struct {
			School struct {
				Name string `json:"name"`
			} `json:"school"`
		}
		if err := json.Unmarshal(doc, &spell); err != nil {
			return false, err
		}
		return strings.Contains(strings.ToLower(spell.School.Name), needle), nil
	})
}

// Monsters lists every monster.
func (c *Client) Monsters(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/monsters")
}

// Monster fetches one monster by index.
func (c *Client) Monster(ctx context.Context, index string) (json.RawMessage, error) {
	return c.get(ctx, "/monsters/"+url.PathEscape(strings.ToLower(index)))
}

// MonstersByChallengeRating returns monsters whose challenge rating equals
// rating. Fractions ("1/4") and decimals ("0.25") are equivalent.
func (c *Client) MonstersByChallengeRating(ctx context.Context, rating string) ([]json.RawMessage, error) {
	want, err := ParseChallengeRating(rating)
	if err != nil {
		return nil, err
	}
	return c.filter(ctx, "/monsters", func(doc json.RawMessage) (bool, error) {
		var monster struct {
			ChallengeRating json.Number `json:"challenge_rating"`
		}
		if err := json.Unmarshal(doc, &monster); err != nil {
			return false, err
		}
		got, err := monster.ChallengeRating.Float64()
		if err != nil {
			return false, nil
		}
		return math.Abs(got-want) < 1e-9, nil
	})
}

// ParseChallengeRating accepts integers, decimals and simple fractions.
func ParseChallengeRating(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	invalid := fmt.Errorf("%w: %q", ErrInvalidChallengeRating, raw)
	if num, den, ok := strings.Cut(raw, "/"); ok {
		n, errN := strconv.ParseFloat(num, 64)
		d, errD := strconv.ParseFloat(den, 64)
		if errN != nil || errD != nil || !isRating(n) || !isRating(d) || d == 0 {
			return 0, invalid
		}
		return n / d, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !isRating(v) {
		return 0, invalid
	}
	return v, nil
}

// isRating reports whether v is a finite, non-negative number.
func isRating(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// filter fetches the list at listPath, then every referenced document with
// at most c.fanout requests in flight, and keeps the matches in list order.
func (c *Client) filter(ctx context.Context, listPath string, keep func(json.RawMessage) (bool, error)) ([]json.RawMessage, error) {
	raw, err := c.get(ctx, listPath)
	if err != nil {
		return nil, err
	}
	var list Reference
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, &APIError{Message: "decode list: " + err.Error(), Err: err}
	}

	matched := make([]json.RawMessage, len(list.Results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanout)
	for i, entry := range list.Results {
		g.Go(func() error {
			doc, err := c.get(gctx, listPath+"/"+url.PathEscape(entry.Index))
			if err != nil {
				return err
			}
			ok, err := keep(doc)
			if err != nil {
				return &APIError{Message: fmt.Sprintf("decode %s: %v", entry.Index, err), Err: err}
			}
			if ok {
				matched[i] = doc
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]json.RawMessage, 0, len(matched))
	for _, doc := range matched {
		if doc != nil {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	log := logger.FromContext(ctx)
	resource := resourceOf(path)

	if body, ok, err := c.cache.Get(ctx, path); err != nil {
		log.Warn("reference cache read failed", zap.String("path", path), zap.Error(err))
	} else if ok {
		metrics.ObserveReferenceLookup(resource, "cache")
		return body, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, &APIError{Message: err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")

	log.Debug("reference api request", zap.String("url", req.URL.String()))
	resp, err := c.http.Do(req)
	if err != nil {
		log.Error("reference api request failed", zap.String("path", path), zap.Error(err))
		return nil, &APIError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "read body: " + err.Error(), Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		log.Warn("reference api error", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if !json.Valid(body) {
		return nil, &APIError{Message: "response is not valid JSON"}
	}

	metrics.ObserveReferenceLookup(resource, "upstream")
	if err := c.cache.Put(ctx, path, body); err != nil {
		log.Warn("reference cache write failed", zap.String("path", path), zap.Error(err))
	}
	return body, nil
}

func resourceOf(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if head, _, ok := strings.Cut(trimmed, "/"); ok {
		return head
	}
	return trimmed
}
