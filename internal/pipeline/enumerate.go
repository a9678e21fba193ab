package pipeline

import (
	"fmt"

	"go-image-pipeline/internal/model"
	"go-image-pipeline/pkg/utils"
)

// Enumerate expands spec into work items 1..ItemCount
func Enumerate(spec model.BatchSpec) ([]model.WorkItem, error) {
	if spec.ItemCount < 0 {
		return nil, fmt.Errorf("enumerate: negative item count %d", spec.ItemCount)
	}
	om := utils.NewOutputManager(spec.Source.BaseURL, spec.Source.FilePattern, spec.Output.RawDir, spec.Output.ProcessedDir)
	if err := om.Validate(); err != nil {
		return nil, fmt.Errorf("enumerate: %w", err)
	}

	items := make([]model.WorkItem, 0, spec.ItemCount)
	for id := 1; id <= spec.ItemCount; id++ {
		items = append(items, model.WorkItem{
			ID:            id,
			SourceLocator: om.SourceURL(id),
			DestLocator:   om.RawPath(id),
			OutputLocator: om.ProcessedPath(id),
		})
	}
	return items, nil
}

// itemIDs returns the IDs of items in order
func itemIDs(items []model.WorkItem) []int {
	ids := make([]int, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
