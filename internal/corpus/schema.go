package corpus

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sola-scriptura-search-api/internal/model"
	"github.com/sola-scriptura-search-api/internal/pipeline"
)

// TextPreference controls which text column the reader resolves to.
type TextPreference string

const (
	TextPreferAuto  TextPreference = "auto"
	TextPreferClean TextPreference = "clean"
	TextPreferPlain TextPreference = "plain"
)

// resolveSchema introspects the verses table's column set for the given
// driver and applies the text_prefer/require_clean configuration.
func resolveSchema(ctx context.Context, db *sqlx.DB, driver string, prefer TextPreference, requireClean bool) (model.SchemaInfo, error) {
	cols, err := verseColumns(ctx, db, driver)
	if err != nil {
		return model.SchemaInfo{}, pipeline.SchemaError(fmt.Sprintf("introspect verses table: %v", err))
	}

	info := model.SchemaInfo{
		HasTextPlain:   cols["text_plain"],
		HasTextClean:   cols["text_clean"],
		HasTextGeneric: cols["text"],
	}

	switch prefer {
	case TextPreferClean:
		if !info.HasTextClean {
			if requireClean {
				return model.SchemaInfo{}, pipeline.SchemaError("text_clean required but absent from verses table")
			}
			info.ResolvedColumn, err = fallbackColumn(info)
			if err != nil {
				return model.SchemaInfo{}, err
			}
			return info, nil
		}
		info.ResolvedColumn = "text_clean"
		return info, nil

	case TextPreferPlain:
		if !info.HasTextPlain {
			info.ResolvedColumn, err = fallbackColumn(info)
			if err != nil {
				return model.SchemaInfo{}, err
			}
			return info, nil
		}
		info.ResolvedColumn = "text_plain"
		return info, nil

	default: // auto
		switch {
		case info.HasTextClean:
			info.ResolvedColumn = "text_clean"
		case info.HasTextPlain:
			info.ResolvedColumn = "text_plain"
		case info.HasTextGeneric:
			info.ResolvedColumn = "text"
		default:
			return model.SchemaInfo{}, pipeline.SchemaError("verses table has none of text_clean, text_plain, text")
		}
		return info, nil
	}
}

func fallbackColumn(info model.SchemaInfo) (string, error) {
	switch {
	case info.HasTextClean:
		return "text_clean", nil
	case info.HasTextPlain:
		return "text_plain", nil
	case info.HasTextGeneric:
		return "text", nil
	default:
		return "", pipeline.SchemaError("verses table has none of text_clean, text_plain, text")
	}
}

func verseColumns(ctx context.Context, db *sqlx.DB, driver string) (map[string]bool, error) {
	var names []string

	switch driver {
	case "sqlite3", "sqlite":
		rows, err := db.QueryxContext(ctx, `PRAGMA table_info(verses)`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var cid int
			var name, ctype string
			var notnull, pk int
			var dflt interface{}
			if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
				return nil, err
			}
			names = append(names, name)
		}
	default: // postgres
		if err := db.SelectContext(ctx, &names, `
			SELECT column_name FROM information_schema.columns
			WHERE table_name = 'verses'
		`); err != nil {
			return nil, err
		}
	}

	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	if len(set) == 0 {
		return nil, pipeline.SchemaError("verses table not found")
	}
	return set, nil
}
