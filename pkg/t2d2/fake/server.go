// Package fake serves an in-memory imitation of the T2D2 HTTP API. It backs
// the SDK tests and the t2d2-sandbox binary. Asset bytes are kept in a
// storage.MemoryStore that clients can share through t2d2.WithStorage.
package fake

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2"
	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2/storage"
)

const (
	// DefaultS3BaseURL is the storage root advertised in project configs. It
	// names no reachable host: clients share Store() in process, or reach
	// StorageHandler through an S3 endpoint override.
	DefaultS3BaseURL = "https://t2d2-sandbox.s3.amazonaws.com"
	DefaultRegion    = "us-east-1"
	DefaultPrefix    = "/api"
)

type assetKind struct {
	path    string
	listKey string
	idsKey  string
}

var kindsByType = map[int64]assetKind{
	1: {path: "images", listKey: "image_list", idsKey: "image_ids"},
	2: {path: "drawings", listKey: "drawing_list", idsKey: "drawing_ids"},
	4: {path: "videos", listKey: "video_list", idsKey: "video_ids"},
	5: {path: "reports", listKey: "report_list", idsKey: "report_ids"},
	6: {path: "3d-models", listKey: "model_list", idsKey: "model_ids"},
}

func kindByPath(path string) (assetKind, int64, bool) {
	for typ, k := range kindsByType {
		if k.path == path {
			return k, typ, true
		}
	}
	return assetKind{}, 0, false
}

func folderFor(assetType, imageType int64) string {
	switch assetType {
	case 1:
		if imageType == 3 {
			return "orthomosaics"
		}
		return "images"
	case 2, 4:
		return "drawings"
	case 5:
		return "reports"
	case 6:
		return "3d_models"
	}
	return "assets"
}

type project struct {
	id         int64
	rec        t2d2.Record
	regions    []t2d2.Record
	assets     map[string]map[int64]t2d2.Record
	tags       []t2d2.Record
	classes    []t2d2.Record
	materials  []t2d2.Record
	conditions []t2d2.Record
	geotags    map[int64][]t2d2.Record
	datasets   map[int64]t2d2.Record
}

// Option configures a Server.
type Option func(*Server)

// WithPrefix mounts the API below prefix instead of /api.
func WithPrefix(prefix string) Option {
	return func(s *Server) {
		s.prefix = ""
		if p := strings.Trim(prefix, "/"); p != "" {
			s.prefix = "/" + p
		}
	}
}

// WithStore shares an existing memory store.
func WithStore(store *storage.MemoryStore) Option {
	return func(s *Server) {
		if store != nil {
			s.store = store
		}
	}
}

// WithStorageConfig sets the S3 base URL and region advertised to clients.
func WithStorageConfig(baseURL, region string) Option {
	return func(s *Server) {
		s.s3BaseURL = strings.TrimRight(baseURL, "/")
		s.region = region
	}
}

// WithLatency delays every request.
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

// WithFailures fails the given fraction of requests with status code.
func WithFailures(rate float64, code int) Option {
	return func(s *Server) {
		s.failRate = rate
		s.failCode = code
	}
}

// WithRandSeed makes failure injection deterministic.
func WithRandSeed(seed uint64) Option {
	return func(s *Server) { s.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithClock overrides the server clock (useful in tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Server) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithLogger logs every handled request.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server implements http.Handler.
type Server struct {
	mu            sync.Mutex
	prefix        string
	store         *storage.MemoryStore
	s3BaseURL     string
	region        string
	apiKeys       map[string]bool
	users         map[string]string
	tokens        map[string]string
	projects      map[int64]*project
	notifications []t2d2.Record
	inferences    []t2d2.Record
	nextID        int64
	now           func() time.Time
	latency       time.Duration
	failRate      float64
	failCode      int
	rnd           *rand.Rand
	logger        *zap.Logger
}

// New constructs an empty server.
func New(opts ...Option) *Server {
	s := &Server{
		prefix:    DefaultPrefix,
		store:     storage.NewMemoryStore(),
		s3BaseURL: DefaultS3BaseURL,
		region:    DefaultRegion,
		apiKeys:   make(map[string]bool),
		users:     make(map[string]string),
		tokens:    make(map[string]string),
		projects:  make(map[int64]*project),
		nextID:    1000,
		now:       func() time.Time { return time.Now().UTC() },
		rnd:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 1)),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the memory store holding uploaded asset bytes.
func (s *Server) Store() *storage.MemoryStore {
	return s.store
}

// Bucket returns the bucket named by the advertised S3 base URL.
func (s *Server) Bucket() string {
	bucket, _ := storage.BucketFromBaseURL(s.s3BaseURL)
	return bucket
}

// AddAPIKey accepts key in the x-api-key header.
func (s *Server) AddAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKeys[key] = true
}

// AddUser registers an account for auth/login.
func (s *Server) AddUser(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToLower(email)] = password
}

// AddToken accepts token as a bearer token.
func (s *Server) AddToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = "token"
}

// Notifications returns the notifications posted so far.
func (s *Server) Notifications() []t2d2.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]t2d2.Record(nil), s.notifications...)
}

// Inferences returns the inference jobs submitted so far.
func (s *Server) Inferences() []t2d2.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]t2d2.Record(nil), s.inferences...)
}

func (s *Server) newID() int64 {
	s.nextID++
	return s.nextID
}

func (s *Server) shouldFail() bool {
	return s.failRate > 0 && s.rnd.Float64() < s.failRate
}

// ServeHTTP dispatches one API call.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.latency > 0 {
		time.Sleep(s.latency)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	if s.shouldFail() {
		code := s.failCode
		if code == 0 {
			code = http.StatusInternalServerError
		}
		sendError(rec, code, "failure injected")
		return
	}

	if !strings.HasPrefix(r.URL.Path, s.prefix+"/") {
		sendError(rec, http.StatusNotFound, "not found")
		return
	}
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, s.prefix), "/")
	if path == "auth/login" {
		s.handleLogin(rec, r)
		return
	}
	if !s.authorized(r) {
		sendError(rec, http.StatusUnauthorized, "unauthorized")
		return
	}
	s.route(rec, r, strings.Split(path, "/"))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) authorized(r *http.Request) bool {
	if key := r.Header.Get("x-api-key"); key != "" {
		return s.apiKeys[key]
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	_, known := s.tokens[token]
	return known
}

func (s *Server) route(w http.ResponseWriter, r *http.Request, segs []string) {
	switch segs[0] {
	case "project":
		switch {
		case len(segs) == 1 && r.Method == http.MethodGet:
			s.handleListProjects(w)
		case len(segs) == 2 && r.Method == http.MethodGet:
			s.handleGetProject(w, segs[1])
		default:
			notFound(w, r)
		}
	case "notifications":
		s.handleNotify(w, r)
	case "material":
		s.handleMaterials(w, r)
	case "annotation-class":
		switch {
		case len(segs) == 1 && r.Method == http.MethodGet:
			s.handleListClasses(w, r)
		case len(segs) == 2 && segs[1] == "create-annotation-class" && r.Method == http.MethodPost:
			s.handleCreateClass(w, r)
		default:
			notFound(w, r)
		}
	case "annotation":
		switch r.Method {
		case http.MethodPost:
			s.handleAddAnnotations(w, r)
		case http.MethodDelete:
			s.handleDeleteAnnotations(w, r)
		default:
			notFound(w, r)
		}
	default:
		pid, err := strconv.ParseInt(segs[0], 10, 64)
		if err != nil || len(segs) < 2 {
			notFound(w, r)
			return
		}
		p, ok := s.projects[pid]
		if !ok {
			sendError(w, http.StatusNotFound, "project not found")
			return
		}
		s.routeProject(w, r, p, segs[1:])
	}
}

func (s *Server) routeProject(w http.ResponseWriter, r *http.Request, p *project, segs []string) {
	n := len(segs)
	switch segs[0] {
	case "categories":
		switch {
		case n == 2 && segs[1] == "regions" && r.Method == http.MethodPost:
			s.handleAddRegion(w, r, p)
		case n == 3 && segs[1] == "regions" && r.Method == http.MethodPut:
			s.handleUpdateRegion(w, r, p, segs[2])
		default:
			notFound(w, r)
		}
	case "assets":
		switch {
		case n == 1 && r.Method == http.MethodPost:
			s.handleGetAssets(w, r, p)
		case n == 2 && segs[1] == "bulk.create" && r.Method == http.MethodPost:
			s.handleCreateAssets(w, r, p)
		default:
			notFound(w, r)
		}
	case "images", "drawings", "videos", "reports", "3d-models":
		kind, _, _ := kindByPath(segs[0])
		switch {
		case n == 1 && r.Method == http.MethodGet:
			s.handleListAssets(w, r, p, kind)
		case n == 2 && segs[1] == "bulk.update" && r.Method == http.MethodPut:
			s.handleUpdateAssets(w, r, p, kind)
		case n == 2 && segs[1] == "bulk.delete" && r.Method == http.MethodDelete:
			s.handleDeleteAssets(w, r, p, kind)
		case n == 2 && r.Method == http.MethodGet:
			s.handleGetAsset(w, p, kind, segs[1])
		default:
			notFound(w, r)
		}
	case "tags":
		switch r.Method {
		case http.MethodGet:
			sendData(w, p.tags)
		case http.MethodPost:
			s.handleAddTag(w, r, p)
		default:
			notFound(w, r)
		}
	case "annotation-class":
		if n == 2 && segs[1] == "bulk.delete" && r.Method == http.MethodDelete {
			s.handleDeleteClasses(w, r, p)
			return
		}
		notFound(w, r)
	case "conditions":
		if n == 1 && r.Method == http.MethodGet {
			sendData(w, t2d2.Record{"condition_list": p.conditions, "total": len(p.conditions)})
			return
		}
		notFound(w, r)
	case "geotags":
		switch {
		case n == 1 && r.Method == http.MethodGet:
			s.handleListGeotags(w, r, p)
		case n == 2 && segs[1] == "bulk.create" && r.Method == http.MethodPost:
			s.handleAddGeotags(w, r, p)
		case n == 2 && segs[1] == "bulk.delete" && r.Method == http.MethodPost:
			s.handleDeleteGeotags(w, r, p)
		default:
			notFound(w, r)
		}
	case "datasets":
		switch {
		case n == 1 && r.Method == http.MethodGet:
			s.handleListDatasets(w, r, p)
		case n == 1 && r.Method == http.MethodPost:
			s.handleCreateDataset(w, r, p)
		case n == 2 && segs[1] == "bulk.delete" && r.Method == http.MethodDelete:
			s.handleDeleteDatasets(w, r, p)
		case n == 3 && segs[2] == "images" && r.Method == http.MethodPut:
			s.handleDatasetImages(w, r, p, segs[1])
		default:
			notFound(w, r)
		}
	case "ai":
		if n == 2 && segs[1] == "inference" && r.Method == http.MethodPost {
			s.handleInference(w, r, p)
			return
		}
		notFound(w, r)
	default:
		notFound(w, r)
	}
}

func (s *Server) newRegion(name string) t2d2.Record {
	return t2d2.Record{"_id": strings.ReplaceAll(uuid.NewString(), "-", "")[:24], "name": name}
}

// projectView renders the project as GET project/{id} returns it.
func (s *Server) projectView(p *project) t2d2.Record {
	view := p.rec.Clone()
	view["regions"] = append([]t2d2.Record{}, p.regions...)
	stats := t2d2.Record{}
	for _, k := range kindsByType {
		stats[strings.ReplaceAll(k.path, "-", "_")] = len(p.assets[k.path])
	}
	view["statistics"] = stats
	view["config"] = t2d2.Record{"s3_base_url": s.s3BaseURL, "aws_region": s.region}
	return view
}

func sortedRecords(m map[int64]t2d2.Record) []t2d2.Record {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]t2d2.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func decodeBody(r *http.Request) (t2d2.Record, error) {
	var body t2d2.Record
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body == nil {
		body = t2d2.Record{}
	}
	return body, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	case string:
		id, _ := strconv.ParseInt(n, 10, 64)
		return id
	}
	return 0
}

func int64s(v any) []int64 {
	items, isList := v.([]any)
	if !isList {
		return nil
	}
	out := make([]int64, 0, len(items))
	for _, item := range items {
		out = append(out, toInt64(item))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func sendData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func sendCreated(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": data})
}

func sendMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msg})
}

func sendError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	sendError(w, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path)
}
