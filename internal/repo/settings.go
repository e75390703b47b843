package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// GestationDays returns the configured gestation length in days, falling
// back to the species default when the stored value is absent or invalid.
func (r *Repository) GestationDays(ctx context.Context) int {
	return r.intSetting(ctx, gestationDaysKey, DefaultGestationDays, 1)
}

// SetGestationDays stores a new gestation length.
func (r *Repository) SetGestationDays(ctx context.Context, days int) error {
	if days < 1 {
		return fmt.Errorf("gestation days must be positive, got %d", days)
	}
	return r.store.Set(ctx, gestationDaysKey, strconv.Itoa(days))
}

// NursingWindowDays returns the window after a lambing during which a dam
// counts as nursing.
func (r *Repository) NursingWindowDays(ctx context.Context) int {
	return r.intSetting(ctx, nursingWindowDaysKey, DefaultNursingWindowDays, 0)
}

// SetNursingWindowDays stores a new nursing window.
func (r *Repository) SetNursingWindowDays(ctx context.Context, days int) error {
	if days < 0 {
		return fmt.Errorf("nursing window days must be non-negative, got %d", days)
	}
	return r.store.Set(ctx, nursingWindowDaysKey, strconv.Itoa(days))
}

// PedigreeGenerations returns the pedigree rendering depth.
func (r *Repository) PedigreeGenerations(ctx context.Context) int {
	return r.intSetting(ctx, pedigreeGenerationsKey, DefaultPedigreeGenerations, 1)
}

// SetPedigreeGenerations stores a new pedigree depth.
func (r *Repository) SetPedigreeGenerations(ctx context.Context, n int) error {
	if n < 1 {
		return fmt.Errorf("pedigree generations must be positive, got %d", n)
	}
	return r.store.Set(ctx, pedigreeGenerationsKey, strconv.Itoa(n))
}

func (r *Repository) intSetting(ctx context.Context, key string, def, min int) int {
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil || !ok {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < min {
		return def
	}
	return v
}

// SiteTheme returns the persisted theme name, empty when unset.
func (r *Repository) SiteTheme(ctx context.Context) (string, error) {
	raw, _, err := r.store.Get(ctx, siteThemeKey)
	return raw, err
}

// SetSiteTheme persists the theme name.
func (r *Repository) SetSiteTheme(ctx context.Context, theme string) error {
	return r.store.Set(ctx, siteThemeKey, theme)
}

// AppearanceSettings returns the free-form appearance document.
func (r *Repository) AppearanceSettings(ctx context.Context) (map[string]string, error) {
	raw, ok, err := r.store.Get(ctx, appearanceKey)
	if err != nil || !ok {
		return map[string]string{}, err
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return map[string]string{}, nil
	}
	return m, nil
}

// SetAppearanceSettings persists the appearance document.
func (r *Repository) SetAppearanceSettings(ctx context.Context, m map[string]string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode appearance settings: %w", err)
	}
	return r.store.Set(ctx, appearanceKey, string(data))
}

// columnOrderField is the reserved key carrying column order inside a
// per-tab column settings object.
const columnOrderField = "order"

// DashboardColumns returns the visibility map for one dashboard tab.
// Earlier versions stored a single flat boolean map shared by all tabs;
// that legacy shape is still readable and applies to every tab.
func (r *Repository) DashboardColumns(ctx context.Context, tab string) (map[string]bool, error) {
	perTab, legacy, err := r.loadColumnDoc(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string]bool{}
	for k, v := range legacy {
		out[k] = v
	}
	raw, ok := perTab[tab]
	if !ok {
		return out, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return out, nil
	}
	for k, v := range fields {
		if k == columnOrderField {
			continue
		}
		var b bool
		if err := json.Unmarshal(v, &b); err == nil {
			out[k] = b
		}
	}
	return out, nil
}

// ColumnOrder returns the saved column order for one tab, nil when unset.
func (r *Repository) ColumnOrder(ctx context.Context, tab string) ([]string, error) {
	perTab, _, err := r.loadColumnDoc(ctx)
	if err != nil {
		return nil, err
	}
	raw, ok := perTab[tab]
	if !ok {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, nil
	}
	orderRaw, ok := fields[columnOrderField]
	if !ok {
		return nil, nil
	}
	var order []string
	if err := json.Unmarshal(orderRaw, &order); err != nil {
		return nil, nil
	}
	return order, nil
}

// SaveDashboardColumns persists the visibility map for one tab, preserving
// any saved column order and the other tabs' settings.
func (r *Repository) SaveDashboardColumns(ctx context.Context, tab string, visible map[string]bool) error {
	return r.updateColumnTab(ctx, tab, func(fields map[string]json.RawMessage) {
		for k := range fields {
			if k != columnOrderField {
				delete(fields, k)
			}
		}
		for k, v := range visible {
			data, _ := json.Marshal(v)
			fields[k] = data
		}
	})
}

// SaveColumnOrder persists the column order for one tab.
func (r *Repository) SaveColumnOrder(ctx context.Context, tab string, order []string) error {
	return r.updateColumnTab(ctx, tab, func(fields map[string]json.RawMessage) {
		data, _ := json.Marshal(order)
		fields[columnOrderField] = data
	})
}

func (r *Repository) updateColumnTab(ctx context.Context, tab string, apply func(map[string]json.RawMessage)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	perTab, legacy, err := r.loadColumnDoc(ctx)
	if err != nil {
		return err
	}
	if perTab == nil {
		perTab = map[string]json.RawMessage{}
	}
	var fields map[string]json.RawMessage
	if raw, ok := perTab[tab]; ok {
		_ = json.Unmarshal(raw, &fields)
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
		// Migrate legacy flat settings into the tab being written.
		for k, v := range legacy {
			data, _ := json.Marshal(v)
			fields[k] = data
		}
	}
	apply(fields)
	tabData, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode column settings: %w", err)
	}
	perTab[tab] = tabData
	doc, err := json.Marshal(perTab)
	if err != nil {
		return fmt.Errorf("encode column document: %w", err)
	}
	return r.store.Set(ctx, dashboardColumnsKey, string(doc))
}

// loadColumnDoc reads the dashboardColumns document. It returns the
// per-tab form when present; when the stored document is the legacy flat
// boolean map, that map is returned as legacy instead.
func (r *Repository) loadColumnDoc(ctx context.Context) (map[string]json.RawMessage, map[string]bool, error) {
	raw, ok, err := r.store.Get(ctx, dashboardColumnsKey)
	if err != nil {
		return nil, nil, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil, nil
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &top); err != nil {
		return nil, nil, nil
	}
	legacy := map[string]bool{}
	allBools := len(top) > 0
	for _, v := range top {
		var b bool
		if err := json.Unmarshal(v, &b); err != nil {
			allBools = false
			break
		}
	}
	if allBools {
		for k, v := range top {
			var b bool
			_ = json.Unmarshal(v, &b)
			legacy[k] = b
		}
		return nil, legacy, nil
	}
	return top, nil, nil
}

// ColumnWidths returns saved pixel widths for a rendered table, nil when
// unset.
func (r *Repository) ColumnWidths(ctx context.Context, tableID string) ([]int, error) {
	raw, ok, err := r.store.Get(ctx, columnWidthsKeyPrefix+tableID)
	if err != nil || !ok {
		return nil, err
	}
	var widths []int
	if err := json.Unmarshal([]byte(raw), &widths); err != nil {
		return nil, nil
	}
	return widths, nil
}

// SaveColumnWidths persists pixel widths for a rendered table.
func (r *Repository) SaveColumnWidths(ctx context.Context, tableID string, widths []int) error {
	data, err := json.Marshal(widths)
	if err != nil {
		return fmt.Errorf("encode column widths: %w", err)
	}
	return r.store.Set(ctx, columnWidthsKeyPrefix+tableID, string(data))
}
