package fake

import (
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2"
)

// Seed describes the initial state of a Server. It is read from YAML or JSON.
type Seed struct {
	APIKeys  []string      `yaml:"api_keys" json:"api_keys"`
	Users    []UserSeed    `yaml:"users" json:"users"`
	Projects []ProjectSeed `yaml:"projects" json:"projects"`
}

type UserSeed struct {
	Email    string `yaml:"email" json:"email"`
	Password string `yaml:"password" json:"password"`
}

type ProjectSeed struct {
	ID          int64           `yaml:"id" json:"id"`
	Name        string          `yaml:"name" json:"name"`
	Address     string          `yaml:"address" json:"address"`
	Description string          `yaml:"description" json:"description"`
	CreatedBy   string          `yaml:"created_by" json:"created_by"`
	CreatedAt   int64           `yaml:"created_at" json:"created_at"`
	Regions     []string        `yaml:"regions" json:"regions"`
	Tags        []string        `yaml:"tags" json:"tags"`
	Materials   []string        `yaml:"materials" json:"materials"`
	Classes     []ClassSeed     `yaml:"classes" json:"classes"`
	Conditions  []ConditionSeed `yaml:"conditions" json:"conditions"`
	Images      []ImageSeed     `yaml:"images" json:"images"`
	Drawings    []string        `yaml:"drawings" json:"drawings"`
}

type ClassSeed struct {
	ID    int64  `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Color string `yaml:"color" json:"color"`
}

type ConditionSeed struct {
	ID      int64  `yaml:"id" json:"id"`
	ClassID int64  `yaml:"class_id" json:"class_id"`
	Rating  string `yaml:"rating" json:"rating"`
}

type ImageSeed struct {
	ID           int64            `yaml:"id" json:"id"`
	Filename     string           `yaml:"filename" json:"filename"`
	Region       string           `yaml:"region" json:"region"`
	CapturedDate int64            `yaml:"captured_date" json:"captured_date"`
	Tags         []string         `yaml:"tags" json:"tags"`
	Annotations  []AnnotationSeed `yaml:"annotations" json:"annotations"`
}

type AnnotationSeed struct {
	ID      int64   `yaml:"id" json:"id"`
	ClassID int64   `yaml:"class_id" json:"class_id"`
	Rating  string  `yaml:"rating" json:"rating"`
	Length  float64 `yaml:"length" json:"length"`
	Area    float64 `yaml:"area" json:"area"`
	// Shape and Points use the normalized geometry of the T2D2 editor.
	Shape  int       `yaml:"shape" json:"shape"`
	Points []float64 `yaml:"points" json:"points"`
	Hidden bool      `yaml:"hidden" json:"hidden"`
}

// LoadSeed reads a seed file. JSON files parse as YAML.
func LoadSeed(file string) (*Seed, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("fake: read seed: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("fake: decode seed %s: %w", file, err)
	}
	return &seed, nil
}

// Apply loads seed into the server.
func (s *Server) Apply(seed *Seed) error {
	if seed == nil {
		return nil
	}
	for _, key := range seed.APIKeys {
		s.AddAPIKey(key)
	}
	for _, u := range seed.Users {
		if strings.TrimSpace(u.Email) == "" {
			return fmt.Errorf("fake: seed user missing email")
		}
		s.AddUser(u.Email, u.Password)
	}
	for _, p := range seed.Projects {
		if _, err := s.AddProject(p); err != nil {
			return err
		}
	}
	return nil
}

// AddProject creates a project from seed and returns its id. A zero ID is
// assigned by the server.
func (s *Server) AddProject(seed ProjectSeed) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := seed.ID
	if id == 0 {
		id = s.newID()
	}
	if _, exists := s.projects[id]; exists {
		return 0, fmt.Errorf("fake: project %d already exists", id)
	}
	if id > s.nextID {
		s.nextID = id
	}
	createdAt := seed.CreatedAt
	if createdAt == 0 {
		createdAt = s.now().Unix()
	}
	createdBy := seed.CreatedBy
	if createdBy == "" {
		createdBy = "sandbox"
	}

	p := &project{
		id: id,
		rec: t2d2.Record{
			"id":          id,
			"profile":     t2d2.Record{"name": seed.Name},
			"location":    t2d2.Record{"address": seed.Address},
			"description": seed.Description,
			"created_by":  createdBy,
			"created_at":  createdAt,
		},
		assets:   make(map[string]map[int64]t2d2.Record),
		geotags:  make(map[int64][]t2d2.Record),
		datasets: make(map[int64]t2d2.Record),
	}
	for _, k := range kindsByType {
		p.assets[k.path] = make(map[int64]t2d2.Record)
	}
	for _, name := range seed.Regions {
		p.regions = append(p.regions, s.newRegion(name))
	}
	for _, name := range seed.Tags {
		p.tags = append(p.tags, t2d2.Record{"id": s.newID(), "name": name, "project_id": id})
	}
	for _, name := range seed.Materials {
		p.materials = append(p.materials, t2d2.Record{"id": s.newID(), "name": name})
	}

	classNames := make(map[int64]string, len(seed.Classes))
	classColors := make(map[int64]string, len(seed.Classes))
	for _, c := range seed.Classes {
		cid := s.seedID(c.ID)
		classNames[cid] = c.Name
		classColors[cid] = c.Color
		p.classes = append(p.classes, t2d2.Record{"id": cid, "name": c.Name, "color": c.Color, "materials": []string{}})
	}
	for _, c := range seed.Conditions {
		p.conditions = append(p.conditions, t2d2.Record{
			"id":                  s.seedID(c.ID),
			"annotation_class_id": c.ClassID,
			"rating_name":         c.Rating,
		})
	}

	for _, img := range seed.Images {
		imgID := s.seedID(img.ID)
		captured := img.CapturedDate
		if captured == 0 {
			captured = createdAt
		}
		tags := make([]t2d2.Record, 0, len(img.Tags))
		for _, name := range img.Tags {
			tags = append(tags, t2d2.Record{"name": name})
		}
		anns := make([]t2d2.Record, 0, len(img.Annotations))
		for _, a := range img.Annotations {
			ann := t2d2.Record{
				"id":                  s.seedID(a.ID),
				"image_id":            imgID,
				"annotation_class_id": a.ClassID,
				"annotation_class": t2d2.Record{
					"id":                     a.ClassID,
					"annotation_class_name":  classNames[a.ClassID],
					"annotation_class_color": classColors[a.ClassID],
				},
				"length":  a.Length,
				"area":    a.Area,
				"visible": !a.Hidden,
			}
			if len(a.Points) > 0 {
				ann["shape"] = a.Shape
				ann["points"] = append([]float64(nil), a.Points...)
			}
			if a.Rating != "" {
				ann["condition"] = t2d2.Record{"rating_name": a.Rating}
			}
			anns = append(anns, ann)
		}
		region := img.Region
		if region == "" {
			region = "default"
		}
		p.assets["images"][imgID] = t2d2.Record{
			"id":            imgID,
			"project_id":    id,
			"asset_type":    1,
			"image_type":    1,
			"name":          strings.TrimSuffix(img.Filename, path.Ext(img.Filename)),
			"filename":      img.Filename,
			"url":           fmt.Sprintf("%s/projects/%d/images/%s", s.s3BaseURL, id, img.Filename),
			"region":        t2d2.Record{"name": region},
			"captured_date": captured,
			"tags":          tags,
			"annotations":   anns,
			"created_at":    createdAt,
		}
	}
	for _, filename := range seed.Drawings {
		did := s.newID()
		p.assets["drawings"][did] = t2d2.Record{
			"id":         did,
			"project_id": id,
			"asset_type": 2,
			"filename":   filename,
			"url":        fmt.Sprintf("%s/projects/%d/drawings/%s", s.s3BaseURL, id, filename),
			"created_at": createdAt,
		}
	}

	s.projects[id] = p
	return id, nil
}

// seedID keeps explicit ids and bumps the counter past them.
func (s *Server) seedID(id int64) int64 {
	if id == 0 {
		return s.newID()
	}
	if id > s.nextID {
		s.nextID = id
	}
	return id
}
