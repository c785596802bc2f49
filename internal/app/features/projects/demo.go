// internal/app/features/projects/demo.go
package projects

import (
	"time"

	"github.com/devcanvas/devcanvas/internal/app/system/reqparam"
	"github.com/devcanvas/devcanvas/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// demoAuthor is the author id shown on sample projects.
var demoAuthor = mustOID("000000000000000000000001")

// demoProjects is served when the database cannot be reached and the demo
// fallback is on. It never contains private projects.
var demoProjects = []models.Project{
	{
		ID:          mustOID("00000000000000000000d001"),
		Author:      demoAuthor,
		Title:       "Hello, DevCanvas",
		Description: "A tiny HTTP server to get started.",
		CodeSnippet: "package main\n\nimport \"net/http\"\n\nfunc main() {\n\thttp.ListenAndServe(\":8080\", nil)\n}\n",
		Language:    "go",
		Tags:        []string{"http", "starter"},
		Visibility:  models.VisibilityPublic,
		Views:       42,
		CreatedAt:   time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
	},
	{
		ID:          mustOID("00000000000000000000d002"),
		Author:      demoAuthor,
		Title:       "Debounce helper",
		Description: "Delay a callback until input settles.",
		CodeSnippet: "export function debounce(fn, ms) {\n  let t;\n  return (...a) => {\n    clearTimeout(t);\n    t = setTimeout(() => fn(...a), ms);\n  };\n}\n",
		Language:    "javascript",
		Tags:        []string{"utility"},
		Visibility:  models.VisibilityPublic,
		Views:       17,
		CreatedAt:   time.Date(2024, 1, 10, 14, 30, 0, 0, time.UTC),
	},
	{
		ID:          mustOID("00000000000000000000d003"),
		Author:      demoAuthor,
		Title:       "Fibonacci generator",
		CodeSnippet: "def fib():\n    a, b = 0, 1\n    while True:\n        yield a\n        a, b = b, a + b\n",
		Language:    "python",
		Tags:        []string{"generators", "math"},
		Visibility:  models.VisibilityPublic,
		Views:       8,
		CreatedAt:   time.Date(2024, 1, 5, 18, 45, 0, 0, time.UTC),
	},
}

func mustOID(hex string) primitive.ObjectID {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		panic(err)
	}
	return id
}

// demoPage slices the sample projects like a real listing would.
func demoPage(page, limit int64) listResponse {
	total := int64(len(demoProjects))
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	views := make([]models.ProjectView, 0, end-start)
	for _, p := range demoProjects[start:end] {
		views = append(views, p.View(primitive.NilObjectID, 0))
	}
	return listResponse{
		Projects:   views,
		Pagination: reqparam.NewPagination(page, limit, total),
	}
}
