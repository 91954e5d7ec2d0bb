package t2d2

import (
	"context"
	"sort"
	"time"
)

const unknownGroup = "unknown"

// ConditionSummary maps a region name to its condition groups, ordered by
// label and rating.
type ConditionSummary map[string][]ConditionGroup

// SummarizeImages counts the project's images by region, capture date
// (YYYY-MM-DD, UTC) and tag name.
func (c *Client) SummarizeImages(ctx context.Context) (ImageSummary, error) {
	images, err := c.GetImages(ctx, nil, nil)
	if err != nil {
		return ImageSummary{}, err
	}
	sum := ImageSummary{
		Regions: make(map[string]int),
		Dates:   make(map[string]int),
		Tags:    make(map[string]int),
	}
	for _, img := range images {
		sum.Regions[regionName(img)]++
		date := unknownGroup
		if ts := img.Int("captured_date"); ts > 0 {
			date = time.Unix(ts, 0).UTC().Format(time.DateOnly)
		}
		sum.Dates[date]++
		for _, tag := range img.Records("tags") {
			sum.Tags[tag.String("name")]++
		}
	}
	return sum, nil
}

// SummarizeConditions groups every annotation of the project by region, then
// by class label and condition rating, totalling counts, lengths and areas.
// Annotations without a rating fall under "default".
func (c *Client) SummarizeConditions(ctx context.Context) (ConditionSummary, error) {
	images, err := c.GetImages(ctx, nil, nil)
	if err != nil {
		return nil, err
	}

	type groupKey struct{ label, rating string }
	byRegion := make(map[string]map[groupKey]*ConditionGroup)
	for _, img := range images {
		id := img.ID()
		annotations, err := c.GetAnnotations(ctx, &id, nil)
		if err != nil {
			return nil, err
		}
		region := regionName(img)
		groups, ok := byRegion[region]
		if !ok {
			groups = make(map[groupKey]*ConditionGroup)
			byRegion[region] = groups
		}
		for _, ann := range annotations {
			key := groupKey{
				label:  ann.Map("annotation_class").String("annotation_class_name"),
				rating: ann.Map("condition").String("rating_name"),
			}
			if key.rating == "" {
				key.rating = "default"
			}
			g, ok := groups[key]
			if !ok {
				g = &ConditionGroup{Label: key.label, Rating: key.rating}
				groups[key] = g
			}
			g.Count++
			g.Length += ann.Float("length")
			g.Area += ann.Float("area")
			g.AnnotationIDs = append(g.AnnotationIDs, ann.ID())
		}
	}

	out := make(ConditionSummary, len(byRegion))
	for region, groups := range byRegion {
		list := make([]ConditionGroup, 0, len(groups))
		for _, g := range groups {
			list = append(list, *g)
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].Label != list[j].Label {
				return list[i].Label < list[j].Label
			}
			return list[i].Rating < list[j].Rating
		})
		out[region] = list
	}
	return out, nil
}

func regionName(img Record) string {
	if name := img.Map("region").String("name"); name != "" {
		return name
	}
	return unknownGroup
}
