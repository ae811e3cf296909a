package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"desec-core/internal/model"
)

// This file builds the Request values that get carried inside a
// QueueItem. The queue worker dispatches them with DoRaw and never needs
// to know which endpoint a given item targets (§4.2) — that knowledge
// lives here, one layer below the façade, next to the response parsers
// that turn a Result's Payload back into domain types.

type rrsetBody struct {
	Subname string   `json:"subname"`
	Type    string   `json:"type"`
	TTL     int      `json:"ttl"`
	Records []string `json:"records"`
}

func rrsetPath(zone, subname, typ string) string {
	return fmt.Sprintf("/domains/%s/rrsets/%s/%s/", zone, subname, typ)
}

func mustEncode(v any) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		// Every caller passes a value built from our own structs; a
		// marshal failure here means a programming error, not bad input.
		panic(fmt.Sprintf("httpclient: encode request body: %v", err))
	}
	return b
}

// --- Zones ---

func NewListZonesRequest() model.Request {
	return model.Request{Method: http.MethodGet, URL: "/domains/"}
}

func NewCreateZoneRequest(name string) model.Request {
	return model.Request{Method: http.MethodPost, URL: "/domains/", Body: mustEncode(map[string]string{"name": name})}
}

func NewGetZoneRequest(name string) model.Request {
	return model.Request{Method: http.MethodGet, URL: fmt.Sprintf("/domains/%s/", name)}
}

func NewDeleteZoneRequest(name string) model.Request {
	return model.Request{Method: http.MethodDelete, URL: fmt.Sprintf("/domains/%s/", name)}
}

// --- RRsets ---

func NewListRRsetsRequest(zone string) model.Request {
	return model.Request{Method: http.MethodGet, URL: fmt.Sprintf("/domains/%s/rrsets/", zone)}
}

func NewCreateRRsetRequest(zone string, rr model.RRset) model.Request {
	body := rrsetBody{Subname: rr.Subname, Type: rr.Type, TTL: rr.TTL, Records: rr.Records}
	return model.Request{Method: http.MethodPost, URL: fmt.Sprintf("/domains/%s/rrsets/", zone), Body: mustEncode(body)}
}

func NewUpdateRRsetRequest(zone, subname, typ string, patch map[string]any) model.Request {
	return model.Request{Method: http.MethodPatch, URL: rrsetPath(zone, subname, typ), Body: mustEncode(patch)}
}

func NewDeleteRRsetRequest(zone, subname, typ string) model.Request {
	return model.Request{Method: http.MethodDelete, URL: rrsetPath(zone, subname, typ)}
}

// NewBulkPutRRsetsRequest builds the single PUT that replaces a zone's
// entire RRset collection in one atomic server-side transaction (§4.5
// "restore" uses this).
func NewBulkPutRRsetsRequest(zone string, rrsets []model.RRset) model.Request {
	bodies := make([]rrsetBody, 0, len(rrsets))
	for _, rr := range rrsets {
		bodies = append(bodies, rrsetBody{Subname: rr.Subname, Type: rr.Type, TTL: rr.TTL, Records: rr.Records})
	}
	return model.Request{Method: http.MethodPut, URL: fmt.Sprintf("/domains/%s/rrsets/", zone), Body: mustEncode(bodies)}
}

// --- Account ---

func NewGetAccountRequest() model.Request {
	return model.Request{Method: http.MethodGet, URL: "/auth/account/"}
}

// --- Tokens ---

func NewListTokensRequest() model.Request {
	return model.Request{Method: http.MethodGet, URL: "/auth/tokens/"}
}

func NewGetTokenRequest(id string) model.Request {
	return model.Request{Method: http.MethodGet, URL: fmt.Sprintf("/auth/tokens/%s/", id)}
}

func NewCreateTokenRequest(attrs map[string]any) model.Request {
	return model.Request{Method: http.MethodPost, URL: "/auth/tokens/", Body: mustEncode(attrs)}
}

func NewUpdateTokenRequest(id string, patch map[string]any) model.Request {
	return model.Request{Method: http.MethodPatch, URL: fmt.Sprintf("/auth/tokens/%s/", id), Body: mustEncode(patch)}
}

func NewDeleteTokenRequest(id string) model.Request {
	return model.Request{Method: http.MethodDelete, URL: fmt.Sprintf("/auth/tokens/%s/", id)}
}

// --- Token policies ---

func NewListPoliciesRequest(tokenID string) model.Request {
	return model.Request{Method: http.MethodGet, URL: fmt.Sprintf("/auth/tokens/%s/policies/rrsets/", tokenID)}
}

func NewCreatePolicyRequest(tokenID string, attrs map[string]any) model.Request {
	return model.Request{Method: http.MethodPost, URL: fmt.Sprintf("/auth/tokens/%s/policies/rrsets/", tokenID), Body: mustEncode(attrs)}
}

func NewUpdatePolicyRequest(tokenID, policyID string, patch map[string]any) model.Request {
	return model.Request{Method: http.MethodPatch, URL: fmt.Sprintf("/auth/tokens/%s/policies/rrsets/%s/", tokenID, policyID), Body: mustEncode(patch)}
}

func NewDeletePolicyRequest(tokenID, policyID string) model.Request {
	return model.Request{Method: http.MethodDelete, URL: fmt.Sprintf("/auth/tokens/%s/policies/rrsets/%s/", tokenID, policyID)}
}

// --- Response parsing ---
// The server's wire shapes differ from our domain model (snake_case
// fields, the rrsets endpoint returning bare arrays, etc). Parsing lives
// here so the façade and cache only ever see model types.

type zoneWire struct {
	Name       string    `json:"name"`
	Created    time.Time `json:"created"`
	Published  bool      `json:"published"`
	MinimumTTL *int      `json:"minimum_ttl,omitempty"`
}

func (z zoneWire) toModel() model.Zone {
	return model.Zone{Name: z.Name, Created: z.Created, Published: z.Published, MinimumTTL: z.MinimumTTL}
}

// ParseZones decodes the array returned by GET /domains/.
func ParseZones(payload []byte) ([]model.Zone, error) {
	var wire []zoneWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("parse zones: %w", err)
	}
	zones := make([]model.Zone, 0, len(wire))
	for _, w := range wire {
		zones = append(zones, w.toModel())
	}
	return zones, nil
}

// ParseZone decodes the object returned by GET /domains/<name>/ or POST /domains/.
func ParseZone(payload []byte) (model.Zone, error) {
	var w zoneWire
	if err := json.Unmarshal(payload, &w); err != nil {
		return model.Zone{}, fmt.Errorf("parse zone: %w", err)
	}
	return w.toModel(), nil
}

type rrsetWire struct {
	Domain  string    `json:"domain"`
	Subname string    `json:"subname"`
	Type    string    `json:"type"`
	TTL     int       `json:"ttl"`
	Records []string  `json:"records"`
	Created time.Time `json:"created"`
	Touched time.Time `json:"touched"`
}

func (w rrsetWire) toModel() model.RRset {
	return model.RRset{
		Zone: w.Domain, Subname: w.Subname, Type: w.Type, TTL: w.TTL,
		Records: w.Records, Created: w.Created, Touched: w.Touched,
	}
}

// ParseRRsets decodes the array returned by GET /domains/<zone>/rrsets/.
func ParseRRsets(payload []byte) ([]model.RRset, error) {
	var wire []rrsetWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("parse rrsets: %w", err)
	}
	rrsets := make([]model.RRset, 0, len(wire))
	for _, w := range wire {
		rrsets = append(rrsets, w.toModel())
	}
	return rrsets, nil
}

// ParseAccount decodes the object returned by GET /auth/account/.
func ParseAccount(payload []byte) (model.AccountInfo, error) {
	var info model.AccountInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		return model.AccountInfo{}, fmt.Errorf("parse account: %w", err)
	}
	return info, nil
}

type tokenWire struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Created         time.Time  `json:"created"`
	LastUsed        *time.Time `json:"last_used,omitempty"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
	Secret          string     `json:"token,omitempty"`
	CreateDomain    bool       `json:"perm_create_domain"`
	DeleteDomain    bool       `json:"perm_delete_domain"`
	ManageTokens    bool       `json:"perm_manage_tokens"`
	AutoPolicy      bool       `json:"auto_policy"`
	MaxAge          *int       `json:"max_age,omitempty"`
	MaxUnusedPeriod *int       `json:"max_unused_period,omitempty"`
	AllowedSubnets  []string   `json:"allowed_subnets,omitempty"`
}

func (w tokenWire) toModel() model.Token {
	return model.Token{
		ID: w.ID, Name: w.Name, Created: w.Created, LastUsed: w.LastUsed, ValidUntil: w.ValidUntil, Secret: w.Secret,
		Permissions: model.TokenPermissions{
			CreateDomain: w.CreateDomain, DeleteDomain: w.DeleteDomain,
			ManageTokens: w.ManageTokens, AutoPolicy: w.AutoPolicy,
		},
		MaxAge: w.MaxAge, MaxUnusedPeriod: w.MaxUnusedPeriod, AllowedSubnets: w.AllowedSubnets,
	}
}

// ParseToken decodes a single token object, including the one-time Secret
// field present only on the create response.
func ParseToken(payload []byte) (model.Token, error) {
	var w tokenWire
	if err := json.Unmarshal(payload, &w); err != nil {
		return model.Token{}, fmt.Errorf("parse token: %w", err)
	}
	return w.toModel(), nil
}

// ParseTokens decodes the array returned by GET /auth/tokens/.
func ParseTokens(payload []byte) ([]model.Token, error) {
	var wire []tokenWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("parse tokens: %w", err)
	}
	tokens := make([]model.Token, 0, len(wire))
	for _, w := range wire {
		tokens = append(tokens, w.toModel())
	}
	return tokens, nil
}

type policyWire struct {
	ID        string  `json:"id"`
	Domain    *string `json:"domain"`
	Subname   *string `json:"subname"`
	Type      *string `json:"type"`
	PermWrite bool    `json:"perm_write"`
}

func (w policyWire) toModel(tokenID string) model.TokenPolicy {
	return model.TokenPolicy{
		ID: w.ID, TokenID: tokenID,
		Domain: w.Domain, Subname: w.Subname, Type: w.Type,
		PermWrite: w.PermWrite,
	}
}

// ParsePolicy decodes a single policy object, e.g. the response to a create call.
func ParsePolicy(tokenID string, payload []byte) (model.TokenPolicy, error) {
	var w policyWire
	if err := json.Unmarshal(payload, &w); err != nil {
		return model.TokenPolicy{}, fmt.Errorf("parse policy: %w", err)
	}
	return w.toModel(tokenID), nil
}

// ParsePolicies decodes the array returned by GET /auth/tokens/<id>/policies/rrsets/.
func ParsePolicies(tokenID string, payload []byte) ([]model.TokenPolicy, error) {
	var wire []policyWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("parse policies: %w", err)
	}
	policies := make([]model.TokenPolicy, 0, len(wire))
	for _, w := range wire {
		policies = append(policies, w.toModel(tokenID))
	}
	return policies, nil
}
