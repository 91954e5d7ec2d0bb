package t2d2

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CredentialKind tags the populated shape of Credentials.
type CredentialKind int

// Credential kinds reported by Credentials.Kind.
const (
	CredentialAPIKey      CredentialKind = iota + 1 // x-api-key header
	CredentialPassword                              // email and password login
	CredentialAccessToken                           // bearer token used as-is
)

func (k CredentialKind) String() string {
	switch k {
	case CredentialAPIKey:
		return "api_key"
	case CredentialPassword:
		return "email_password"
	case CredentialAccessToken:
		return "access_token"
	default:
		return "unknown"
	}
}

// Credentials authenticate a Client. Exactly one of APIKey, Email+Password or
// AccessToken must be set.
type Credentials struct {
	APIKey      string
	Email       string `validate:"omitempty,email"`
	Password    string
	AccessToken string
}

// APIKey returns API key credentials.
func APIKey(key string) Credentials {
	return Credentials{APIKey: key}
}

// EmailPassword returns credentials exchanged for a token at login.
func EmailPassword(email, password string) Credentials {
	return Credentials{Email: email, Password: password}
}

// AccessToken returns credentials using a pre-issued bearer token.
func AccessToken(token string) Credentials {
	return Credentials{AccessToken: token}
}

// Kind validates c and returns its shape.
func (c Credentials) Kind() (CredentialKind, error) {
	apiKey := strings.TrimSpace(c.APIKey) != ""
	email := strings.TrimSpace(c.Email) != ""
	password := c.Password != ""
	token := strings.TrimSpace(c.AccessToken) != ""

	var kinds []CredentialKind
	if apiKey {
		kinds = append(kinds, CredentialAPIKey)
	}
	if email || password {
		if !email || !password {
			return 0, fmt.Errorf("%w: email and password must be supplied together", ErrInvalidCredentials)
		}
		kinds = append(kinds, CredentialPassword)
	}
	if token {
		kinds = append(kinds, CredentialAccessToken)
	}

	switch len(kinds) {
	case 0:
		return 0, fmt.Errorf("%w: one of api key, email/password or access token is required", ErrInvalidCredentials)
	case 1:
	default:
		return 0, fmt.Errorf("%w: exactly one credential form may be supplied, got %d", ErrInvalidCredentials, len(kinds))
	}

	if err := validate.Struct(c); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return kinds[0], nil
}

// AssetType identifies the kind of asset registered with a project.
type AssetType int

// Asset types used by the assets endpoints.
const (
	AssetImage   AssetType = 1
	AssetDrawing AssetType = 2
	AssetVideo   AssetType = 4
	AssetReport  AssetType = 5
	AssetThreeD  AssetType = 6
)

// ImageTypeOrthomosaic marks orthomosaic uploads; they are stored apart from
// regular images.
const ImageTypeOrthomosaic = 3

// Params are query parameters. Slice, array and map values are JSON-encoded,
// numbers are printed in plain decimal and everything else with fmt.
type Params map[string]any

func (p Params) values() (url.Values, error) {
	if len(p) == 0 {
		return nil, nil
	}
	out := make(url.Values, len(p))
	for k, v := range p {
		if v == nil {
			continue
		}
		switch reflect.ValueOf(v).Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("%w: encode param %q: %v", ErrInvalidArgument, k, err)
			}
			out.Set(k, string(data))
		default:
			out.Set(k, formatScalar(v))
		}
	}
	return out, nil
}

func mergeParams(base, extra Params) Params {
	out := make(Params, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Record is an opaque resource payload as returned by the server.
type Record map[string]any

// ID returns the numeric "id" field, or 0.
func (r Record) ID() int64 {
	return r.Int("id")
}

// Int returns key as an integer, accepting JSON numbers and numeric strings.
func (r Record) Int(key string) int64 {
	switch v := r[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

// Float returns key as a float64, or 0.
func (r Record) Float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

// String returns key as a string, or "".
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	default:
		return formatScalar(v)
	}
}

// formatScalar prints numbers in plain decimal so ids never turn into
// exponent notation.
func formatScalar(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

// Map returns the nested object stored under key, or nil.
func (r Record) Map(key string) Record {
	switch v := r[key].(type) {
	case map[string]any:
		return Record(v)
	case Record:
		return v
	}
	return nil
}

// Records returns the array of objects stored under key. Non-object entries
// are skipped.
func (r Record) Records(key string) []Record {
	return toRecords(r[key])
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func toRecords(v any) []Record {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Record(m))
		}
	}
	return out
}

// ProjectInfo summarises the active project.
type ProjectInfo struct {
	ID          int64
	Name        string
	Address     string
	Description string
	CreatedBy   string
	CreatedAt   time.Time
	Statistics  Record
}

// UploadOptions tune UploadImages.
type UploadOptions struct {
	// ImageType is sent as image_type; ImageTypeOrthomosaic stores files in
	// the orthomosaics folder. Zero means 1 (regular image).
	ImageType int
	// Params are merged into the bulk.create payload.
	Params Record
}

// AnnotationClass describes a class created with AddAnnotationClass.
type AnnotationClass struct {
	Name string `validate:"required"`
	// Color is a #RRGGBB string; a random colour is chosen when empty.
	Color     string `validate:"omitempty,hexcolor"`
	Materials []string
}

// InferenceRequest submits images to a T2D2 AI model.
type InferenceRequest struct {
	ImageIDs []int64 `validate:"required,min=1"`
	ModelID  int64   `validate:"gte=0"`
	Params   Record
}

// DatasetAction selects how UpdateDatasetImages changes a dataset.
type DatasetAction string

// Dataset actions accepted by UpdateDatasetImages.
const (
	DatasetAdd    DatasetAction = "add"
	DatasetRemove DatasetAction = "remove"
)

// ImageSummary counts project images by region, capture date and tag.
type ImageSummary struct {
	Regions map[string]int
	Dates   map[string]int
	Tags    map[string]int
}

// ConditionGroup aggregates annotations sharing a class label and rating.
type ConditionGroup struct {
	Label         string
	Rating        string
	Count         int
	Length        float64
	Area          float64
	AnnotationIDs []int64
}
