package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/siherrmann/geoalert/model"
)

// Date layouts of the alert feed.
var dateLayouts = []string{
	"1/2/2006 3:04:05 PM",
	"2006-01-02T15:04:05",
}

// FlexibleString accepts a JSON string or number and keeps its textual form.
type FlexibleString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexibleString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexibleString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*s = FlexibleString(n.String())
	return nil
}

// String returns the trimmed value.
func (s FlexibleString) String() string {
	return strings.TrimSpace(string(s))
}

// Float parses the value as a float. Missing or invalid values return nil.
func (s FlexibleString) Float() *float64 {
	f, err := strconv.ParseFloat(s.String(), 64)
	if err != nil {
		return nil
	}
	return &f
}

// FeatureCollection is the root of the alert feed.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is one governorate of the feed with its alerts.
type Feature struct {
	Properties *FeatureProperties `json:"properties"`
}

// FeatureProperties are the attributes of a governorate feature.
type FeatureProperties struct {
	RegionID     FlexibleString `json:"Region_ID"`
	RegionNameAr FlexibleString `json:"Region_Name_A"`
	RegionNameEn FlexibleString `json:"Region_Name_E"`
	GovID        FlexibleString `json:"GovID"`
	GovNameAr    FlexibleString `json:"Gov_Name_A"`
	GovNameEn    FlexibleString `json:"Gov_Name_E"`
	Alerts       []FeedAlert    `json:"alert"`
}

// FeedAlert is an alert nested in a feature.
type FeedAlert struct {
	ID           FlexibleString    `json:"id"`
	Title        FlexibleString    `json:"title"`
	TypeAr       FlexibleString    `json:"alertTypeAr"`
	TypeEn       FlexibleString    `json:"alertTypeEn"`
	FromDate     FlexibleString    `json:"fromDate"`
	ToDate       FlexibleString    `json:"toDate"`
	StatusAr     FlexibleString    `json:"alertStatusAr"`
	StatusEn     FlexibleString    `json:"alertStatusEn"`
	Governorates []FeedGovernorate `json:"governorates"`
	Hazards      []FeedHazard      `json:"alertHazards"`
}

// FeedGovernorate carries the position of a governorate an alert applies to.
type FeedGovernorate struct {
	ID        FlexibleString `json:"id"`
	Latitude  FlexibleString `json:"latitude"`
	Longitude FlexibleString `json:"longitude"`
}

// FeedHazard is a hazard of an alert.
type FeedHazard struct {
	ID            FlexibleString `json:"id"`
	DescriptionAr FlexibleString `json:"descriptionAr"`
	DescriptionEn FlexibleString `json:"descriptionEn"`
}

// ParseFeatureCollection decodes the alert feed.
func ParseFeatureCollection(data []byte) (*FeatureCollection, error) {
	var fc FeatureCollection
	err := json.Unmarshal(data, &fc)
	if err != nil {
		return nil, fmt.Errorf("error decoding feature collection: %w", err)
	}
	return &fc, nil
}

// ParseDate parses a feed date. Empty or unknown formats return nil.
func ParseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return &t
		}
	}
	return nil
}

// Link connects an alert to a governorate or a hazard.
type Link struct {
	AlertID string
	OtherID string
}

// Dataset is the deduplicated content of a feed, ready to be embedded and stored.
type Dataset struct {
	Regions            []*model.Region
	Governorates       []*model.Governorate
	Alerts             []*model.Alert
	Hazards            []*model.Hazard
	AlertGovernorates  []Link
	AlertHazards       []Link
	UnknownDateFormats []string
}

// Extract flattens the feed into a dataset. The first occurrence of every id wins,
// except for governorate positions which take the last nested match.
func (fc *FeatureCollection) Extract() *Dataset {
	d := &Dataset{}

	regionsSeen := map[string]struct{}{}
	governoratesSeen := map[string]*model.Governorate{}
	alertsSeen := map[string]struct{}{}
	hazardsSeen := map[string]struct{}{}
	alertGovernoratesSeen := map[Link]struct{}{}
	alertHazardsSeen := map[Link]struct{}{}

	for _, feature := range fc.Features {
		props := feature.Properties
		if props == nil {
			continue
		}

		regionID := props.RegionID.String()
		if regionID != "" {
			if _, ok := regionsSeen[regionID]; !ok {
				regionsSeen[regionID] = struct{}{}
				d.Regions = append(d.Regions, &model.Region{
					ID:     regionID,
					NameAr: props.RegionNameAr.String(),
					NameEn: props.RegionNameEn.String(),
				})
			}
		}

		govID := props.GovID.String()
		if govID != "" {
			governorate, ok := governoratesSeen[govID]
			if !ok {
				governorate = &model.Governorate{
					ID:       govID,
					RegionID: regionID,
					NameAr:   props.GovNameAr.String(),
					NameEn:   props.GovNameEn.String(),
				}
				governoratesSeen[govID] = governorate
				d.Governorates = append(d.Governorates, governorate)
			}
			for _, alert := range props.Alerts {
				for _, g := range alert.Governorates {
					if g.ID.String() != govID {
						continue
					}
					if lat := g.Latitude.Float(); lat != nil {
						governorate.Latitude = lat
					}
					if lon := g.Longitude.Float(); lon != nil {
						governorate.Longitude = lon
					}
					break
				}
			}
		}

		for _, alert := range props.Alerts {
			alertID := alert.ID.String()
			if alertID == "" {
				continue
			}

			if _, ok := alertsSeen[alertID]; !ok {
				alertsSeen[alertID] = struct{}{}
				d.Alerts = append(d.Alerts, &model.Alert{
					ID:       alertID,
					Title:    alert.Title.String(),
					TypeAr:   alert.TypeAr.String(),
					TypeEn:   alert.TypeEn.String(),
					FromDate: d.parseDate(alert.FromDate),
					ToDate:   d.parseDate(alert.ToDate),
					StatusAr: alert.StatusAr.String(),
					StatusEn: alert.StatusEn.String(),
				})
			}

			if govID != "" {
				link := Link{AlertID: alertID, OtherID: govID}
				if _, ok := alertGovernoratesSeen[link]; !ok {
					alertGovernoratesSeen[link] = struct{}{}
					d.AlertGovernorates = append(d.AlertGovernorates, link)
				}
			}

			for _, hazard := range alert.Hazards {
				hazardID := hazard.ID.String()
				if hazardID == "" {
					continue
				}
				if _, ok := hazardsSeen[hazardID]; !ok {
					hazardsSeen[hazardID] = struct{}{}
					d.Hazards = append(d.Hazards, &model.Hazard{
						ID:            hazardID,
						DescriptionAr: hazard.DescriptionAr.String(),
						DescriptionEn: hazard.DescriptionEn.String(),
					})
				}
				link := Link{AlertID: alertID, OtherID: hazardID}
				if _, ok := alertHazardsSeen[link]; !ok {
					alertHazardsSeen[link] = struct{}{}
					d.AlertHazards = append(d.AlertHazards, link)
				}
			}
		}
	}

	return d
}

func (d *Dataset) parseDate(value FlexibleString) *time.Time {
	t := ParseDate(value.String())
	if t == nil && value.String() != "" {
		d.UnknownDateFormats = append(d.UnknownDateFormats, value.String())
	}
	return t
}

// RegionText is the text embedded for a region.
func RegionText(r *model.Region) string {
	return strings.TrimSpace(fmt.Sprintf("%s - %s", r.NameAr, r.NameEn))
}

// GovernorateText is the text embedded for a governorate.
func GovernorateText(g *model.Governorate) string {
	return strings.TrimSpace(fmt.Sprintf("%s - %s", g.NameAr, g.NameEn))
}

// HazardText is the text embedded for a hazard.
func HazardText(h *model.Hazard) string {
	return strings.TrimSpace(fmt.Sprintf("%s | %s", h.DescriptionAr, h.DescriptionEn))
}
