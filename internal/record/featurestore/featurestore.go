// Package featurestore adapts an ArcGIS-style feature service REST API to
// the record.Store contract. It resolves credentials internally (app
// client-credentials first, then username/password, else unauthenticated)
// and exposes only connected-or-failed to the rest of the system.
package featurestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/fieldtriage/internal/record"
)

const (
	httpTimeout = 30 * time.Second

	// tokenSlack refreshes tokens slightly before the service expires them.
	tokenSlack = time.Minute

	statusFieldLength = 50
)

// Config wires a Store to one feature layer.
type Config struct {
	// PortalURL is the ArcGIS portal root, e.g. https://www.arcgis.com.
	PortalURL string

	// LayerURL is the REST URL of the feature layer, ending in the layer
	// index, e.g. https://services.example.com/.../FeatureServer/0.
	LayerURL string

	// App credentials take precedence; username/password is the fallback.
	// With neither set the layer is accessed unauthenticated.
	ClientID     string
	ClientSecret string
	Username     string
	Password     string

	// Field names on the layer.
	ObjectIDField string
	NoteField     string
	StatusField   string
}

// Store is a record.Store over a remote feature layer.
type Store struct {
	cfg    Config
	logger log.Logger
	client *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// New creates a feature store adapter. It performs no I/O; call Connect to
// verify credentials and layer access.
func New(cfg Config, logger log.Logger) *Store {
	if logger == nil {
		logger = log.Nop()
	}
	return &Store{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// arcError is the service-level error envelope. The service reports most
// failures inside an HTTP 200 body.
type arcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details []any  `json:"details,omitempty"`
}

func (e *arcError) Error() string {
	return fmt.Sprintf("feature service error %d: %s", e.Code, e.Message)
}

// Connect acquires a token (when credentials are configured) and verifies
// the layer is reachable. Callers treat any error as "failed to connect".
func (s *Store) Connect(ctx context.Context) error {
	if _, err := s.authToken(ctx); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	meta, err := s.layerMetadata(ctx)
	if err != nil {
		return fmt.Errorf("access feature layer: %w", err)
	}

	s.logger.Info(ctx, "connected to feature layer",
		"layer", meta.Name,
		"fields", len(meta.Fields),
	)
	return nil
}

// EnsureStatusField adds the status field to the layer definition when it
// is missing. A field that already exists is success.
func (s *Store) EnsureStatusField(ctx context.Context) error {
	meta, err := s.layerMetadata(ctx)
	if err != nil {
		return fmt.Errorf("inspect layer fields: %w", err)
	}

	for _, f := range meta.Fields {
		if strings.EqualFold(f.Name, s.cfg.StatusField) {
			s.logger.Info(ctx, "status field already exists", "field", s.cfg.StatusField)
			return nil
		}
	}

	def := map[string]any{
		"fields": []map[string]any{{
			"name":     s.cfg.StatusField,
			"type":     "esriFieldTypeString",
			"alias":    "Triage Status",
			"length":   statusFieldLength,
			"nullable": true,
		}},
	}
	defJSON, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal field definition: %w", err)
	}

	form := url.Values{}
	form.Set("addToDefinition", string(defJSON))

	var resp struct {
		Success bool      `json:"success"`
		Error   *arcError `json:"error"`
	}
	if err := s.post(ctx, s.cfg.LayerURL+"/addToDefinition", form, &resp); err != nil {
		return fmt.Errorf("add status field: %w", err)
	}
	if resp.Error != nil {
		// Concurrent provisioning can lose the race; an "already exists"
		// rejection still leaves the layer in the state we need.
		if strings.Contains(strings.ToLower(resp.Error.Message), "already exists") {
			return nil
		}
		return fmt.Errorf("add status field: %w", resp.Error)
	}
	if !resp.Success {
		return fmt.Errorf("add status field: service reported failure")
	}

	s.logger.Info(ctx, "added status field to layer", "field", s.cfg.StatusField)
	return nil
}

// QueryUnprocessed returns all records whose status field is null or empty,
// in the order the service returns them.
func (s *Store) QueryUnprocessed(ctx context.Context) ([]record.Record, error) {
	where := fmt.Sprintf("%s IS NULL OR %s = ''", s.cfg.StatusField, s.cfg.StatusField)

	form := url.Values{}
	form.Set("where", where)
	form.Set("outFields", strings.Join([]string{s.cfg.ObjectIDField, s.cfg.NoteField, s.cfg.StatusField}, ","))
	form.Set("returnGeometry", "false")

	var resp struct {
		Features []struct {
			Attributes map[string]any `json:"attributes"`
		} `json:"features"`
		Error *arcError `json:"error"`
	}
	if err := s.post(ctx, s.cfg.LayerURL+"/query", form, &resp); err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("query features: %w", resp.Error)
	}

	recs := make([]record.Record, 0, len(resp.Features))
	for _, f := range resp.Features {
		recs = append(recs, record.Record{
			ID:     attrString(f.Attributes[s.cfg.ObjectIDField]),
			Note:   attrString(f.Attributes[s.cfg.NoteField]),
			Status: attrString(f.Attributes[s.cfg.StatusField]),
		})
	}
	return recs, nil
}

// ApplyStatus submits all updates as one applyEdits batch and maps the
// per-feature results back onto the update IDs.
func (s *Store) ApplyStatus(ctx context.Context, updates []record.Update) ([]record.WriteResult, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	edits := make([]map[string]any, 0, len(updates))
	for _, u := range updates {
		edits = append(edits, map[string]any{
			"attributes": map[string]any{
				s.cfg.ObjectIDField: objectID(u.ID),
				s.cfg.StatusField:   u.Status,
			},
		})
	}
	editsJSON, err := json.Marshal(edits)
	if err != nil {
		return nil, fmt.Errorf("marshal edits: %w", err)
	}

	form := url.Values{}
	form.Set("updates", string(editsJSON))

	var resp struct {
		UpdateResults []struct {
			ObjectID json.Number `json:"objectId"`
			Success  bool        `json:"success"`
			Error    *arcError   `json:"error"`
		} `json:"updateResults"`
		Error *arcError `json:"error"`
	}
	if err := s.post(ctx, s.cfg.LayerURL+"/applyEdits", form, &resp); err != nil {
		return nil, fmt.Errorf("apply edits: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("apply edits: %w", resp.Error)
	}

	results := make([]record.WriteResult, 0, len(resp.UpdateResults))
	for _, ur := range resp.UpdateResults {
		wr := record.WriteResult{ID: ur.ObjectID.String(), OK: ur.Success}
		if !ur.Success {
			wr.Reason = "update rejected"
			if ur.Error != nil {
				wr.Reason = ur.Error.Message
			}
		}
		results = append(results, wr)
	}
	return results, nil
}

// layerMetadata fetches the layer's name and field list.
type layerMeta struct {
	Name   string `json:"name"`
	Fields []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"fields"`
}

func (s *Store) layerMetadata(ctx context.Context) (*layerMeta, error) {
	var resp struct {
		layerMeta
		Error *arcError `json:"error"`
	}
	if err := s.post(ctx, s.cfg.LayerURL, url.Values{}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return &resp.layerMeta, nil
}

// authToken returns a cached token, refreshing it when stale. With no
// credentials configured it returns the empty string: public layers work
// without one.
func (s *Store) authToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.tokenExpiry.Add(-tokenSlack)) {
		return s.token, nil
	}

	switch {
	case s.cfg.ClientID != "" && s.cfg.ClientSecret != "":
		return s.appToken(ctx)
	case s.cfg.Username != "" && s.cfg.Password != "":
		return s.userToken(ctx)
	default:
		return "", nil
	}
}

func (s *Store) appToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("client_id", s.cfg.ClientID)
	form.Set("client_secret", s.cfg.ClientSecret)
	form.Set("grant_type", "client_credentials")

	var resp struct {
		AccessToken string    `json:"access_token"`
		ExpiresIn   int       `json:"expires_in"`
		Error       *arcError `json:"error"`
	}
	if err := s.postRaw(ctx, s.cfg.PortalURL+"/sharing/rest/oauth2/token", form, &resp); err != nil {
		return "", fmt.Errorf("app token: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("app token: %w", resp.Error)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("app token: empty token in response")
	}

	s.token = resp.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	s.logger.Info(ctx, "authenticated with app credentials", "client_id", s.cfg.ClientID)
	return s.token, nil
}

func (s *Store) userToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("username", s.cfg.Username)
	form.Set("password", s.cfg.Password)
	form.Set("client", "referer")
	form.Set("referer", s.cfg.PortalURL)

	var resp struct {
		Token   string    `json:"token"`
		Expires int64     `json:"expires"` // unix millis
		Error   *arcError `json:"error"`
	}
	if err := s.postRaw(ctx, s.cfg.PortalURL+"/sharing/rest/generateToken", form, &resp); err != nil {
		return "", fmt.Errorf("user token: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("user token: %w", resp.Error)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("user token: empty token in response")
	}

	s.token = resp.Token
	s.tokenExpiry = time.UnixMilli(resp.Expires)
	s.logger.Info(ctx, "authenticated as user", "username", s.cfg.Username)
	return s.token, nil
}

// post issues an authenticated f=json form POST against the feature service.
func (s *Store) post(ctx context.Context, endpoint string, form url.Values, out any) error {
	token, err := s.authToken(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		form.Set("token", token)
	}
	return s.postRaw(ctx, endpoint, form, out)
}

func (s *Store) postRaw(ctx context.Context, endpoint string, form url.Values, out any) error {
	form.Set("f", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feature service returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// attrString renders an attribute value as a string. Object IDs arrive as
// JSON numbers; notes may be null.
func attrString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// objectID converts a record ID back to the numeric type the service
// expects, falling back to the raw string for non-numeric ID fields.
func objectID(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
