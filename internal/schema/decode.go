package schema

import (
	"resoluciones/internal/core"
	derrors "resoluciones/internal/errors"
)

// Decode builds the typed view of a normalized record. Records that passed
// Validate always decode; anything else yields a NormalizationError naming
// the offending field.
func Decode(record map[string]any) (core.Record, error) {
	var rec core.Record
	var err error

	if rec.Period, err = stringField(record, KeyPeriod); err != nil {
		return core.Record{}, err
	}
	if rec.TitleBase, err = stringField(record, KeyTitleBase); err != nil {
		return core.Record{}, err
	}
	if rec.Rationale, err = stringField(record, KeyRationale); err != nil {
		return core.Record{}, err
	}

	considerations, err := listField(record, KeyConsiderations)
	if err != nil {
		return core.Record{}, err
	}
	for i, raw := range considerations {
		c, err := decodeConsideration(raw, i)
		if err != nil {
			return core.Record{}, err
		}
		rec.Considerations = append(rec.Considerations, c)
	}

	articles, err := listField(record, KeyArticles)
	if err != nil {
		return core.Record{}, err
	}
	for i, raw := range articles {
		s, ok := raw.(string)
		if !ok {
			return core.Record{}, shapeError("%s[%d] is %T, want text", KeyArticles, i, raw)
		}
		rec.Articles = append(rec.Articles, s)
	}

	annex, ok := record[KeyAnnex].(map[string]any)
	if !ok {
		return core.Record{}, shapeError("%s is %T, want object", KeyAnnex, record[KeyAnnex])
	}
	if rec.Annex, err = decodeAnnex(annex); err != nil {
		return core.Record{}, err
	}
	return rec, nil
}

func decodeConsideration(raw any, i int) (core.Consideration, error) {
	entry, ok := raw.(map[string]any)
	if !ok {
		return nil, shapeError("%s[%d] is %T, want object", KeyConsiderations, i, raw)
	}
	kind, _ := entry[KeyKind].(string)
	switch core.ConsiderationKind(kind) {
	case core.KindPriorExpense:
		desc, _ := entry[KeyDescription].(string)
		amount, _ := entry[KeyAmount].(string)
		return core.PriorExpense{Description: desc, Amount: amount}, nil
	case core.KindText:
		content, _ := entry[KeyContent].(string)
		return core.TextConsideration{Content: content}, nil
	default:
		return nil, shapeError("%s[%d] has unknown %s %q", KeyConsiderations, i, KeyKind, kind)
	}
}

func decodeAnnex(annex map[string]any) (core.Annex, error) {
	var out core.Annex
	out.Title, _ = annex[KeyAnnexTitle].(string)
	out.ClosingNote, _ = annex[KeyClosingNote].(string)

	var err error
	if out.LineItems, err = decodeItems(annex, KeyLineItems); err != nil {
		return core.Annex{}, err
	}
	if out.Penalties, err = decodeItems(annex, KeyPenalties); err != nil {
		return core.Annex{}, err
	}
	return out, nil
}

func decodeItems(annex map[string]any, field string) ([]core.LineItem, error) {
	raw, ok := annex[field]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, shapeError("%s.%s is %T, want array", KeyAnnex, field, raw)
	}
	items := make([]core.LineItem, 0, len(list))
	for i, r := range list {
		m, ok := r.(map[string]any)
		if !ok {
			return nil, shapeError("%s.%s[%d] is %T, want object", KeyAnnex, field, i, r)
		}
		category, _ := m[KeyCategory].(string)
		amount, _ := m[KeyAmount].(string)
		items = append(items, core.LineItem{Category: category, Amount: amount})
	}
	return items, nil
}

// Encode turns a typed record back into its stored form.
func Encode(rec core.Record) map[string]any {
	considerations := make([]any, 0, len(rec.Considerations))
	for _, c := range rec.Considerations {
		switch v := c.(type) {
		case core.PriorExpense:
			considerations = append(considerations, map[string]any{
				KeyKind:        string(core.KindPriorExpense),
				KeyDescription: v.Description,
				KeyAmount:      v.Amount,
			})
		case core.TextConsideration:
			considerations = append(considerations, map[string]any{
				KeyKind:    string(core.KindText),
				KeyContent: v.Content,
			})
		}
	}

	articles := make([]any, len(rec.Articles))
	for i, a := range rec.Articles {
		articles[i] = a
	}

	return map[string]any{
		KeyPeriod:         rec.Period,
		KeyTitleBase:      rec.TitleBase,
		KeyRationale:      rec.Rationale,
		KeyConsiderations: considerations,
		KeyArticles:       articles,
		KeyAnnex: map[string]any{
			KeyAnnexTitle:  rec.Annex.Title,
			KeyLineItems:   encodeItems(rec.Annex.LineItems),
			KeyPenalties:   encodeItems(rec.Annex.Penalties),
			KeyClosingNote: rec.Annex.ClosingNote,
		},
	}
}

func encodeItems(items []core.LineItem) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = map[string]any{KeyCategory: it.Category, KeyAmount: it.Amount}
	}
	return out
}

func stringField(m map[string]any, key string) (string, error) {
	s, ok := m[key].(string)
	if !ok {
		return "", shapeError("%s is %T, want text", key, m[key])
	}
	return s, nil
}

func listField(m map[string]any, key string) ([]any, error) {
	raw := m[key]
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, shapeError("%s is %T, want array", key, raw)
	}
	return list, nil
}

func shapeError(format string, args ...any) error {
	return derrors.Newf(derrors.CodeNormalizationError, format, args...)
}
