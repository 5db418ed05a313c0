package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sheetexpense/internal/core"
	"sheetexpense/internal/log"
	"sheetexpense/internal/sheets"
	"sheetexpense/internal/storage"
)

var categoriesColumn = core.Range(core.CategoriesSheet, "A:A")

// CategoryService keeps the category list in column A of the Categories
// tab of the current year's spreadsheet. A category's id is its zero-based
// row index; row 0 is the header.
type CategoryService struct {
	runner Runner
	prov   *Provisioner
	now    func() time.Time
	logger *slog.Logger
}

func NewCategoryService(runner Runner, prov *Provisioner, logger *slog.Logger) *CategoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CategoryService{runner: runner, prov: prov, now: time.Now, logger: logger}
}

// within provisions the current year's spreadsheet and reads the column.
func (s *CategoryService) within(ctx context.Context, userID int64, fn func(ctx context.Context, wb sheets.Workbook, ss storage.UserSpreadsheet, rows sheets.Values) error) error {
	return s.runner.Do(ctx, userID, func(ctx context.Context, wb sheets.Workbook) error {
		ss, err := s.prov.EnsureSpreadsheet(ctx, wb, userID, s.now().Year())
		if err != nil {
			return err
		}
		rows, err := wb.GetValues(ctx, ss.SpreadsheetID, categoriesColumn)
		if err != nil {
			return fmt.Errorf("read categories: %w", err)
		}
		return fn(ctx, wb, ss, rows)
	})
}

// List returns the stored categories, or the defaults when none are stored.
func (s *CategoryService) List(ctx context.Context, userID int64) ([]core.Category, error) {
	var out []core.Category
	err := s.within(ctx, userID, func(_ context.Context, _ sheets.Workbook, _ storage.UserSpreadsheet, rows sheets.Values) error {
		for i := 1; i < len(rows); i++ {
			if name := core.CellString(rows.Cell(i, 0)); name != "" {
				out = append(out, core.Category{ID: i, Name: name})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		out = defaultCategories()
	}
	return out, nil
}

func defaultCategories() []core.Category {
	out := make([]core.Category, 0, len(core.DefaultCategories))
	for i, name := range core.DefaultCategories {
		out = append(out, core.Category{ID: i + 1, Name: name, IsDefault: true})
	}
	return out
}

// duplicate reports whether name collides with any data row except skip.
func duplicate(rows sheets.Values, name string, skip int) bool {
	for i := 1; i < len(rows); i++ {
		if i == skip {
			continue
		}
		if existing := core.CellString(rows.Cell(i, 0)); existing != "" && core.SameCategory(existing, name) {
			return true
		}
	}
	return false
}

// Add appends a category and returns it with its row id.
func (s *CategoryService) Add(ctx context.Context, userID int64, name string) (core.Category, error) {
	name, err := core.NormalizeCategoryName(name)
	if err != nil {
		return core.Category{}, err
	}

	var added core.Category
	err = s.within(ctx, userID, func(ctx context.Context, wb sheets.Workbook, ss storage.UserSpreadsheet, rows sheets.Values) error {
		if duplicate(rows, name, -1) {
			return fmt.Errorf("%w: %q", core.ErrDuplicateCategory, name)
		}
		if len(rows) == 0 {
			header := core.Range(core.CategoriesSheet, "A1")
			if err := wb.UpdateValues(ctx, ss.SpreadsheetID, header, sheets.Values{{core.CategoriesHeader}}, sheets.Raw); err != nil {
				return fmt.Errorf("restore categories header: %w", err)
			}
			rows = sheets.Values{{core.CategoriesHeader}}
		}
		if err := wb.AppendValues(ctx, ss.SpreadsheetID, categoriesColumn, sheets.Values{{name}}, sheets.Raw); err != nil {
			return fmt.Errorf("append category: %w", err)
		}
		added = core.Category{ID: len(rows), Name: name}
		return nil
	})
	if err != nil {
		return core.Category{}, err
	}
	s.logger.InfoContext(ctx, "Category added", log.FieldUserID, userID, log.FieldCategory, name, log.FieldCategoryID, added.ID)
	return added, nil
}

func checkRowID(id int) error {
	switch {
	case id == 0:
		return core.ErrHeaderRow
	case id < 0:
		return fmt.Errorf("%w: %d", core.ErrInvalidID, id)
	}
	return nil
}

func existing(rows sheets.Values, id int) error {
	if core.CellString(rows.Cell(id, 0)) == "" {
		return fmt.Errorf("%w: id %d", core.ErrCategoryNotFound, id)
	}
	return nil
}

// Update renames the category in row id.
func (s *CategoryService) Update(ctx context.Context, userID int64, id int, name string) (core.Category, error) {
	if err := checkRowID(id); err != nil {
		return core.Category{}, err
	}
	name, err := core.NormalizeCategoryName(name)
	if err != nil {
		return core.Category{}, err
	}

	err = s.within(ctx, userID, func(ctx context.Context, wb sheets.Workbook, ss storage.UserSpreadsheet, rows sheets.Values) error {
		if err := existing(rows, id); err != nil {
			return err
		}
		if duplicate(rows, name, id) {
			return fmt.Errorf("%w: %q", core.ErrDuplicateCategory, name)
		}
		cell := core.Range(core.CategoriesSheet, fmt.Sprintf("A%d", id+1))
		if err := wb.UpdateValues(ctx, ss.SpreadsheetID, cell, sheets.Values{{name}}, sheets.Raw); err != nil {
			return fmt.Errorf("update category: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Category{}, err
	}
	s.logger.InfoContext(ctx, "Category updated", log.FieldUserID, userID, log.FieldCategory, name, log.FieldCategoryID, id)
	return core.Category{ID: id, Name: name}, nil
}

// Delete removes row id; later rows shift up, so their ids drop by one.
func (s *CategoryService) Delete(ctx context.Context, userID int64, id int) error {
	if err := checkRowID(id); err != nil {
		return err
	}

	err := s.within(ctx, userID, func(ctx context.Context, wb sheets.Workbook, ss storage.UserSpreadsheet, rows sheets.Values) error {
		if err := existing(rows, id); err != nil {
			return err
		}
		tabs, err := wb.ListSheets(ctx, ss.SpreadsheetID)
		if err != nil {
			return fmt.Errorf("list sheets: %w", err)
		}
		tab, ok := sheets.FindSheet(tabs, core.CategoriesSheet)
		if !ok {
			return fmt.Errorf("%w: categories sheet", core.ErrCategoryNotFound)
		}
		if err := wb.DeleteRows(ctx, ss.SpreadsheetID, tab.ID, int64(id), int64(id)+1); err != nil {
			return fmt.Errorf("delete category row: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Category deleted", log.FieldUserID, userID, log.FieldCategoryID, id)
	return nil
}
