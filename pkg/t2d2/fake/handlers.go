package fake

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		notFound(w, r)
		return
	}
	body, err := decodeBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.ToLower(body.String("email"))
	password, known := s.users[email]
	if !known || password != body.String("password") {
		sendError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	token := "tok-" + uuid.NewString()
	s.tokens[token] = email
	sendData(w, t2d2.Record{
		"email":          email,
		"firebaseDetail": t2d2.Record{"access_token": token, "expires_in": "3600"},
	})
}

func (s *Server) handleListProjects(w http.ResponseWriter) {
	ids := make([]int64, 0, len(s.projects))
	for id := range s.projects {
		ids = append(ids, id)
	}
	views := make(map[int64]t2d2.Record, len(ids))
	for _, id := range ids {
		views[id] = s.projectView(s.projects[id])
	}
	list := sortedRecords(views)
	sendData(w, t2d2.Record{"project_list": list, "total_projects": len(list)})
}

func (s *Server) handleGetProject(w http.ResponseWriter, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid project id")
		return
	}
	p, found := s.projects[id]
	if !found {
		sendError(w, http.StatusNotFound, "project not found")
		return
	}
	sendData(w, s.projectView(p))
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		notFound(w, r)
		return
	}
	body, err := decodeBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.String("title") == "" {
		sendError(w, http.StatusBadRequest, "title is required")
		return
	}
	s.notifications = append(s.notifications, t2d2.Record{
		"id":         s.newID(),
		"title":      body.String("title"),
		"message":    body.String("message"),
		"created_at": s.now().Unix(),
	})
	sendMessage(w, "notification sent")
}

func (s *Server) handleMaterials(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		notFound(w, r)
		return
	}
	p, found := s.projectFromQuery(r)
	if !found {
		sendError(w, http.StatusNotFound, "project not found")
		return
	}
	sendData(w, p.materials)
}

func (s *Server) projectFromQuery(r *http.Request) (*project, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get("project_id"), 10, 64)
	if err != nil {
		return nil, false
	}
	p, found := s.projects[id]
	return p, found
}

func (s *Server) projectFromBody(body t2d2.Record) (*project, bool) {
	p, found := s.projects[toInt64(body["project_id"])]
	return p, found
}

func (s *Server) handleAddRegion(w http.ResponseWriter, r *http.Request, p *project) {
	body, err := decodeBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(body.String("name"))
	if name == "" {
		sendError(w, http.StatusBadRequest, "name is required")
		return
	}
	for _, region := range p.regions {
		if region.String("name") == name {
			sendError(w, http.StatusConflict, "region already exists")
			return
		}
	}
	region := s.newRegion(name)
	p.regions = append(p.regions, region)
	sendCreated(w, region)
}

func (s *Server) handleUpdateRegion(w http.ResponseWriter, r *http.Request, p *project, regionID string) {
	body, err := decodeBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	for i, region := range p.regions {
		if region.String("_id") != regionID {
			continue
		}
		updated := region.Clone()
		for k, v := range body {
			if k != "_id" {
				updated[k] = v
			}
		}
		p.regions[i] = updated
		sendData(w, updated)
		return
	}
	sendError(w, http.StatusNotFound, "region not found")
}

func (s *Server) handleGetAssets(w http.ResponseWriter, r *http.Request, p *project) {
	body, err := decodeBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, known := kindsByType[toInt64(body["asset_type"])]
	if !known {
		sendError(w, http.StatusBadRequest, "unknown asset_type")
		return
	}
	out := make([]t2d2.Record, 0)
	for _, id := range int64s(body["asset_ids"]) {
		if rec, found := p.assets[kind.path][id]; found {
			out = append(out, rec)
		}
	}
	sendData(w, out)
}

func (s *Server) handleCreateAssets(w http.ResponseWriter, r *http.Request, p *project) {
	body, err := decodeBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	assetType := toInt64(body["asset_type"])
	kind, known := kindsByType[assetType]
	if !known {
		sendError(w, http.StatusBadRequest, "unknown asset_type")
		return
	}
	imageType := toInt64(body["image_type"])
	if imageType == 0 {
		imageType = 1
	}
	items := toRecordList(body["assets"])
	if len(items) == 0 {
		sendError(w, http.StatusBadRequest, "assets are required")
		return
	}

	folder := folderFor(assetType, imageType)
	createdAssets := make([]t2d2.Record, 0, len(items))
	for _, item := range items {
		stored := item.String("url")
		if stored == "" {
			sendError(w, http.StatusBadRequest, "asset url is required")
			return
		}
		id := s.newID()
		rec := t2d2.Record{
			"id":         id,
			"project_id": p.id,
			"asset_type": assetType,
			"name":       item.String("name"),
			"filename":   item.String("filename"),
			"url":        fmt.Sprintf("%s/projects/%d/%s/%s", s.s3BaseURL, p.id, folder, stored),
			"size":       item["size"],
			"created_at": s.now().Unix(),
		}
		if assetType == 1 {
			rec["image_type"] = imageType
			rec["region"] = t2d2.Record{"name": s.defaultRegion(p, body.String("region"))}
			rec["captured_date"] = s.now().Unix()
			rec["tags"] = []t2d2.Record{}
			rec["annotations"] = []t2d2.Record{}
		}
		p.assets[kind.path][id] = rec
		createdAssets = append(createdAssets, rec)
	}
	sendCreated(w, createdAssets)
}

func (s *Server) defaultRegion(p *project, requested string) string {
	if requested != "" {
		return requested
	}
	if len(p.regions) > 0 {
		return p.regions[0].String("name")
	}
	return "default"
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request, p *project, kind assetKind) {
	list := sortedRecords(p.assets[kind.path])
	total := len(list)
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	sendData(w, t2d2.Record{kind.listKey: list, "total": total})
}

func (s *Server) handleGetAsset(w http.ResponseWriter, p *project, kind assetKind, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid id")
		return
	}
	rec, found := p.assets[kind.path][id]
	if !found {
		sendError(w, http.StatusNotFound, strings.TrimSuffix(kind.path, "s")+" not found")
		return
	}
	sendData(w, rec)
}

func (s *Server) handleUpdateAssets(w http.ResponseWriter, r *http.Request, p *project, kind assetKind) {
	body, err := decodeBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	ids := int64s(body[kind.idsKey])
	if len(ids) == 0 {
		sendError(w, http.StatusBadRequest, kind.idsKey+" are required")
		return
	}
	updated := 0
	for _, id := range ids {
		rec, found := p.assets[kind.path][id]
		if !found {
			continue
		}
		next := rec.Clone()
		for k, v := range body {
			if k == kind.idsKey || k == "project_id" || k == "id" {
				continue
			}
			next[k] = v
		}
		p.assets[kind.path][id] = next
		updated++
	}
	sendMessage(w, fmt.Sprintf("%d %s updated", updated, kind.path))
}

func (s *Server) handleDeleteAssets(w http.ResponseWriter, r *http.Request, p *project, kind assetKind) {
	body, err := decodeBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	deleted := 0
	for _, id := range int64s(body[kind.idsKey]) {
		if _, found := p.assets[kind.path][id]; found {
			delete(p.assets[kind.path], id)
			deleted++
		}
	}
	sendMessage(w, fmt.Sprintf("%d %s deleted", deleted, kind.path))
}

func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request, p *project) {
	body, err := decodeBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(body.String("name"))
	if name == "" {
		sendError(w, http.StatusBadRequest, "name is required")
		return
	}
	for _, tag := range p.tags {
		if strings.EqualFold(tag.String("name"), name) {
			sendError(w, http.StatusConflict, "tag already exists")
			return
		}
	}
	tag := t2d2.Record{"id": s.newID(), "name": name, "project_id": p.id}
	p.tags = append(p.tags, tag)
	sendCreated(w, tag)
}

func (s *Server) handleListClasses(w http.ResponseWriter, r *http.Request) {
	p, found := s.projectFromQuery(r)
	if !found {
		sendError(w, http.StatusNotFound, "project not found")
		return
	}
	labels := s.classes(p)
	sendData(w, t2d2.Record{"label_list": labels, "total": len(labels)})
}

func (s *Server) classes(p *project) []t2d2.Record {
	return p.classes
}

func (s *Server) classByID(p *project, id int64) (t2d2.Record, bool) {
	for _, c := range s.classes(p) {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}

func (s *Server) handleCreateClass(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, found := s.projectFromBody(body)
	if !found {
		sendError(w, http.StatusNotFound, "project not found")
		return
	}
	name := strings.TrimSpace(body.String("name"))
	if name == "" {
		sendError(w, http.StatusBadRequest, "name is required")
		return
	}
	for _, c := range s.classes(p) {
		if c.String("name") == name {
			sendError(w, http.StatusConflict, "annotation class already exists")
			return
		}
	}
	class := t2d2.Record{
		"id":        s.newID(),
		"name":      name,
		"color":     body.String("color"),
		"materials": body["materials"],
	}
	p.classes = append(p.classes, class)
	sendCreated(w, class)
}

func (s *Server) handleDeleteClasses(w http.ResponseWriter, r *http.Request, p *project) {
	body, err := decodeBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	drop := make(map[int64]bool)
	for _, id := range int64s(body["annotation_class_ids"]) {
		drop[id] = true
	}
	kept := make([]t2d2.Record, 0)
	for _, c := range s.classes(p) {
		if !drop[c.ID()] {
			kept = append(kept, c)
		}
	}
	deleted := len(s.classes(p)) - len(kept)
	p.classes = kept
	sendMessage(w, fmt.Sprintf("%d annotation classes deleted", deleted))
}

func (s *Server) imageFromBody(body t2d2.Record) (*project, t2d2.Record, string) {
	p, found := s.projectFromBody(body)
	if !found {
		return nil, nil, "project not found"
	}
	img, found := p.assets["images"][toInt64(body["image_id"])]
	if !found {
		return nil, nil, "image not found"
	}
	return p, img, ""
}

func (s *Server) handleAddAnnotations(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, img, msg := s.imageFromBody(body)
	if msg != "" {
		sendError(w, http.StatusNotFound, msg)
		return
	}
	items := toRecordList(body["annotations"])
	if len(items) == 0 {
		sendError(w, http.StatusBadRequest, "annotations are required")
		return
	}
	existing, _ := img["annotations"].([]t2d2.Record)
	added := make([]t2d2.Record, 0, len(items))
	for _, item := range items {
		ann := item.Clone()
		ann["id"] = s.newID()
		ann["image_id"] = img.ID()
		if class, found := s.classByID(p, item.Int("annotation_class_id")); found {
			ann["annotation_class"] = t2d2.Record{
				"id":                     class.ID(),
				"annotation_class_name":  class.String("name"),
				"annotation_class_color": class.String("color"),
			}
		}
		added = append(added, ann)
	}
	next := img.Clone()
	next["annotations"] = append(append([]t2d2.Record{}, existing...), added...)
	p.assets["images"][img.ID()] = next
	sendCreated(w, added)
}

func (s *Server) handleDeleteAnnotations(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, img, msg := s.imageFromBody(body)
	if msg != "" {
		sendError(w, http.StatusNotFound, msg)
		return
	}
	drop := make(map[int64]bool)
	for _, id := range int64s(body["annotation_ids"]) {
		drop[id] = true
	}
	existing, _ := img["annotations"].([]t2d2.Record)
	kept := make([]t2d2.Record, 0, len(existing))
	for _, ann := range existing {
		if !drop[ann.ID()] {
			kept = append(kept, ann)
		}
	}
	next := img.Clone()
	next["annotations"] = kept
	p.assets["images"][img.ID()] = next
	sendMessage(w, fmt.Sprintf("%d annotations deleted", len(existing)-len(kept)))
}

func (s *Server) handleListGeotags(w http.ResponseWriter, r *http.Request, p *project) {
	drawingID, err := strconv.ParseInt(r.URL.Query().Get("drawing_id"), 10, 64)
	if err != nil {
		sendError(w, http.StatusBadRequest, "drawing_id is required")
		return
	}
	tags := p.geotags[drawingID]
	if tags == nil {
		tags = []t2d2.Record{}
	}
	sendData(w, tags)
}

func (s *Server) handleAddGeotags(w http.ResponseWriter, r *http.Request, p *project) {
	body, err := decodeBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	drawingID := toInt64(body["drawing_id"])
	if _, found := p.assets["drawings"][drawingID]; !found {
		sendError(w, http.StatusNotFound, "drawing not found")
		return
	}
	added := make([]t2d2.Record, 0)
	for _, item := range toRecordList(body["geotags"]) {
		tag := item.Clone()
		tag["id"] = s.newID()
		tag["drawing_id"] = drawingID
		added = append(added, tag)
	}
	p.geotags[drawingID] = append(p.geotags[drawingID], added...)
	sendCreated(w, added)
}

func (s *Server) handleDeleteGeotags(w http.ResponseWriter, r *http.Request, p *project) {
	body, err := decodeBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	drawingID := toInt64(body["drawing_id"])
	drop := make(map[int64]bool)
	for _, id := range int64s(body["geotag_ids"]) {
		drop[id] = true
	}
	kept := make([]t2d2.Record, 0)
	for _, tag := range p.geotags[drawingID] {
		if !drop[tag.ID()] {
			kept = append(kept, tag)
		}
	}
	deleted := len(p.geotags[drawingID]) - len(kept)
	p.geotags[drawingID] = kept
	sendMessage(w, fmt.Sprintf("%d geotags deleted", deleted))
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request, p *project) {
	list := sortedRecords(p.datasets)
	if name := r.URL.Query().Get("name"); name != "" {
		filtered := make([]t2d2.Record, 0, len(list))
		for _, d := range list {
			if strings.Contains(d.String("name"), name) {
				filtered = append(filtered, d)
			}
		}
		list = filtered
	}
	sendData(w, t2d2.Record{"dataset_list": list, "total_datasets": len(list)})
}

func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request, p *project) {
	body, err := decodeBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(body.String("name"))
	if name == "" {
		sendError(w, http.StatusBadRequest, "name is required")
		return
	}
	ds := t2d2.Record{
		"id":         s.newID(),
		"name":       name,
		"created_by": "sandbox",
		"created_at": s.now().Unix(),
		"image_ids":  []int64{},
		"image_size": 0,
		"public":     false,
	}
	p.datasets[ds.ID()] = ds
	sendCreated(w, ds)
}

func (s *Server) handleDeleteDatasets(w http.ResponseWriter, r *http.Request, p *project) {
	body, err := decodeBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	deleted := 0
	for _, id := range int64s(body["dataset_ids"]) {
		if _, found := p.datasets[id]; found {
			delete(p.datasets, id)
			deleted++
		}
	}
	sendMessage(w, fmt.Sprintf("%d datasets deleted", deleted))
}

func (s *Server) handleDatasetImages(w http.ResponseWriter, r *http.Request, p *project, rawID string) {
	id, _ := strconv.ParseInt(rawID, 10, 64)
	ds, found := p.datasets[id]
	if !found {
		sendError(w, http.StatusNotFound, "dataset not found")
		return
	}
	body, err := decodeBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	current, _ := ds["image_ids"].([]int64)
	members := make(map[int64]bool, len(current))
	for _, imgID := range current {
		members[imgID] = true
	}
	ids := int64s(body["image_ids"])
	switch body.String("action") {
	case "add":
		for _, imgID := range ids {
			if _, exists := p.assets["images"][imgID]; !exists {
				sendError(w, http.StatusNotFound, fmt.Sprintf("image %d not found", imgID))
				return
			}
			if !members[imgID] {
				members[imgID] = true
				current = append(current, imgID)
			}
		}
	case "remove":
		drop := make(map[int64]bool, len(ids))
		for _, imgID := range ids {
			drop[imgID] = true
		}
		kept := make([]int64, 0, len(current))
		for _, imgID := range current {
			if !drop[imgID] {
				kept = append(kept, imgID)
			}
		}
		current = kept
	default:
		sendError(w, http.StatusBadRequest, "action must be either 'add' or 'remove'")
		return
	}
	next := ds.Clone()
	next["image_ids"] = current
	next["image_size"] = len(current)
	p.datasets[id] = next
	sendData(w, next)
}

func (s *Server) handleInference(w http.ResponseWriter, r *http.Request, p *project) {
	body, err := decodeBody(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	ids := int64s(body["image_ids"])
	if len(ids) == 0 {
		sendError(w, http.StatusBadRequest, "image_ids are required")
		return
	}
	for _, id := range ids {
		if _, found := p.assets["images"][id]; !found {
			sendError(w, http.StatusNotFound, fmt.Sprintf("image %d not found", id))
			return
		}
	}
	job := body.Clone()
	job["job_id"] = uuid.NewString()
	job["status"] = "queued"
	job["submitted_at"] = s.now().Unix()
	s.inferences = append(s.inferences, job)
	sendData(w, job)
}

func toRecordList(v any) []t2d2.Record {
	items, isList := v.([]any)
	if !isList {
		return nil
	}
	out := make([]t2d2.Record, 0, len(items))
	for _, item := range items {
		if m, isMap := item.(map[string]any); isMap {
			out = append(out, t2d2.Record(m))
		}
	}
	return out
}
