package models

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Relation declares the foreign key behind the relationship field
// Model.Field, which points at the Target entity.
type Relation struct {
	Model  string
	Field  string
	Target string
}

// Entity is one registered table. Entities migrate in registration order,
// so a parent must be registered before any child that references it.
type Entity struct {
	Name  string
	Model any
}

type Registry struct {
	Entities  []Entity
	Relations []Relation
}

func DefaultRegistry() Registry {
	return Registry{
		Entities: []Entity{
			{Name: "Product", Model: &Product{}},
			{Name: "CartItem", Model: &CartItem{}},
			{Name: "Order", Model: &Order{}},
			{Name: "OrderItem", Model: &OrderItem{}},
			{Name: "Notification", Model: &Notification{}},
		},
		Relations: []Relation{
			{Model: "CartItem", Field: "Product", Target: "Product"},
			{Model: "Order", Field: "Items", Target: "OrderItem"},
		},
	}
}

func (r Registry) index(name string) int {
	for i, e := range r.Entities {
		if e.Name == name {
			return i
		}
	}
	return -1
}

func (r Registry) Validate() error {
	for _, rel := range r.Relations {
		if r.index(rel.Model) < 0 {
			return fmt.Errorf("relation %s.%s: unknown entity %s", rel.Model, rel.Field, rel.Model)
		}
		if r.index(rel.Target) < 0 {
			return fmt.Errorf("relation %s.%s: unknown entity %s", rel.Model, rel.Field, rel.Target)
		}
	}
	return nil
}

func (r Registry) Models() []any {
	out := make([]any, 0, len(r.Entities))
	for _, e := range r.Entities {
		out = append(out, e.Model)
	}
	return out
}

func (r Registry) Migrate(ctx context.Context, db *gorm.DB) error {
	if err := r.Validate(); err != nil {
		return err
	}
	for _, e := range r.Entities {
		if err := db.WithContext(ctx).AutoMigrate(e.Model); err != nil {
			return fmt.Errorf("migrate %s: %w", e.Name, err)
		}
	}
	// sqlite cannot add constraints to an existing table; it gets the
	// belongs-to keys inline at CREATE TABLE time.
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	m := db.WithContext(ctx).Migrator()
	for _, rel := range r.Relations {
		model := r.Entities[r.index(rel.Model)].Model
		if m.HasConstraint(model, rel.Field) {
			continue
		}
		if err := m.CreateConstraint(model, rel.Field); err != nil {
			return fmt.Errorf("constraint %s.%s: %w", rel.Model, rel.Field, err)
		}
	}
	return nil
}

func Migrate(ctx context.Context, db *gorm.DB) error {
	return DefaultRegistry().Migrate(ctx, db)
}
