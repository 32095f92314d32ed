package normalize

import (
	"sort"
	"strings"

	"github.com/alertgate/gateway/internal/models"
)

// entityLabels are the label keys eligible to vary across alerts that
// otherwise describe the same condition; merging collapses such alerts
// into one with MergedEntities populated. Precedence is the order
// checked when more than one key happens to be present.
var entityLabels = []string{"pod", "instance", "service_name", "container", "host"}

// mergeEntities collapses alerts sharing an alertname and differing in
// exactly one entity label into a single canonical alert, preserving
// first-seen order of both the surviving alerts and the merged entity
// values. Groups that differ in more than one entity label, or in any
// non-entity label, are left unmerged. This implementation merges
// unconditionally (it does not consult the routing table), per the
// simplification the normalizer spec explicitly permits.
func mergeEntities(alerts []*models.Alert) []*models.Alert {
	if len(alerts) < 2 {
		return alerts
	}

	type bucket struct {
		key     string
		members []*models.Alert
	}

	order := make([]string, 0, len(alerts))
	buckets := make(map[string]*bucket)

	for _, a := range alerts {
		key := groupKey(a)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{key: key}
			buckets[key] = b
			order = append(order, key)
		}
		b.members = append(b.members, a)
	}

	out := make([]*models.Alert, 0, len(alerts))
	for _, key := range order {
		b := buckets[key]
		if len(b.members) == 1 {
			out = append(out, b.members[0])
			continue
		}
		merged, ok := mergeBucket(b.members)
		if !ok {
			out = append(out, b.members...)
			continue
		}
		out = append(out, merged)
	}
	return out
}

// groupKey serializes everything that must be identical for alerts to be
// merge candidates: the alertname plus every label except the entity
// labels, sorted for order-invariance.
func groupKey(a *models.Alert) string {
	var sb strings.Builder
	sb.WriteString(string(a.Status))
	sb.WriteByte('|')

	pairs := a.Labels.Pairs()
	kept := make([]models.Pair, 0, len(pairs))
	for _, p := range pairs {
		if isEntityLabel(p.Key) {
			continue
		}
		kept = append(kept, p)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Key < kept[j].Key })
	for _, p := range kept {
		sb.WriteString(p.Key)
		sb.WriteByte('=')
		sb.WriteString(p.Value)
		sb.WriteByte(';')
	}
	return sb.String()
}

func isEntityLabel(key string) bool {
	for _, e := range entityLabels {
		if e == key {
			return true
		}
	}
	return false
}

// mergeBucket attempts to collapse members that differ in exactly one
// entity label. Returns ok=false if more than one entity label varies
// across the group (ambiguous merge), in which case the caller should
// keep the members separate.
func mergeBucket(members []*models.Alert) (*models.Alert, bool) {
	varying := ""
	for _, e := range entityLabels {
		first, _ := members[0].Labels.Get(e)
		differs := false
		for _, m := range members[1:] {
			v, _ := m.Labels.Get(e)
			if v != first {
				differs = true
				break
			}
		}
		if differs {
			if varying != "" {
				return nil, false
			}
			varying = e
		}
	}
	merged := &models.Alert{
		Status:       members[0].Status,
		Labels:       members[0].Labels.Clone(),
		Annotations:  members[0].Annotations.Clone(),
		StartsAt:     members[0].StartsAt,
		EndsAt:       members[0].EndsAt,
		GeneratorURL: members[0].GeneratorURL,
		Fingerprint:  members[0].Fingerprint,
		Values:       members[0].Values,
		ValueString:  members[0].ValueString,
	}

	if varying == "" {
		// Identical in every tracked label, including the entity labels
		// (or no entity label present at all): collapse duplicates without
		// inventing an entity list or touching labels members[0] never had.
		return merged, true
	}

	seen := make(map[string]bool)
	for _, m := range members {
		v, _ := m.Labels.Get(varying)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		merged.MergedEntities = append(merged.MergedEntities, v)
	}
	merged.Labels.Set(varying, strings.Join(merged.MergedEntities, ","))

	return merged, true
}
