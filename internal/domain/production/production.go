// Package production holds recipes and the brews made from them.
package production

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
)

// Table names
const (
	TableRecipes = "recipes"
	TableBrews   = "brews"
)

// Tables returns the production table schemas
func Tables() []record.TableSchema {
	return []record.TableSchema{
		{
			Name: TableRecipes,
			Columns: []record.Column{
				{Name: "name", Type: record.TypeText},
				{Name: "style", Type: record.TypeText, Nullable: true},
				{Name: "target_og", Type: record.TypeDecimal, Nullable: true},
				{Name: "target_fg", Type: record.TypeDecimal, Nullable: true},
			},
		},
		{
			Name: TableBrews,
			Columns: []record.Column{
				{Name: "gyle_number", Type: record.TypeText},
				{Name: "recipe_id", Type: record.TypeText, Nullable: true},
				{Name: "brew_date", Type: record.TypeTime},
				{Name: "og", Type: record.TypeDecimal, Nullable: true},
				{Name: "fg", Type: record.TypeDecimal, Nullable: true},
				{Name: "abv", Type: record.TypeDecimal, Nullable: true},
				{Name: "volume_litres", Type: record.TypeDecimal, Default: record.Dec(decimal.Zero)},
			},
		},
	}
}

// Recipe is read-only for the core
type Recipe struct {
	ID       string
	Name     string
	Style    record.Optional[string]
	TargetOG record.Optional[decimal.Decimal]
	TargetFG record.Optional[decimal.Decimal]
}

// RecipeFromRow maps a recipes row
func RecipeFromRow(r record.Row) Recipe {
	return Recipe{
		ID:       r.ID,
		Name:     r.Fields.Text("name"),
		Style:    r.Fields.OptText("style"),
		TargetOG: r.Fields.OptDecimal("target_og"),
		TargetFG: r.Fields.OptDecimal("target_fg"),
	}
}

// Brew is one production run, identified to HMRC by its gyle number
type Brew struct {
	ID           string
	GyleNumber   string
	RecipeID     record.Optional[string]
	BrewDate     time.Time
	OG           record.Optional[decimal.Decimal]
	FG           record.Optional[decimal.Decimal]
	ABV          record.Optional[decimal.Decimal]
	VolumeLitres decimal.Decimal
}

// BrewFromRow maps a brews row
func BrewFromRow(r record.Row) Brew {
	return Brew{
		ID:           r.ID,
		GyleNumber:   r.Fields.Text("gyle_number"),
		RecipeID:     r.Fields.OptText("recipe_id"),
		BrewDate:     r.Fields.Time("brew_date"),
		OG:           r.Fields.OptDecimal("og"),
		FG:           r.Fields.OptDecimal("fg"),
		ABV:          r.Fields.OptDecimal("abv"),
		VolumeLitres: r.Fields.Decimal("volume_litres"),
	}
}

// Fields returns the row fields of the brew
func (b Brew) Fields() record.Fields {
	return record.Fields{
		"gyle_number":   record.Text(b.GyleNumber),
		"recipe_id":     record.OptionalText(b.RecipeID),
		"brew_date":     record.Time(b.BrewDate),
		"og":            record.OptionalDec(b.OG),
		"fg":            record.OptionalDec(b.FG),
		"abv":           record.OptionalDec(b.ABV),
		"volume_litres": record.Dec(b.VolumeLitres),
	}
}
