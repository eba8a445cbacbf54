package main

import (
	"context"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/crm"
)

var defaultColumns = []struct {
	name  string
	color string
}{
	{"New", "#94a3b8"},
	{"Contacted", "#38bdf8"},
	{"Qualified", "#a78bfa"},
	{"Proposal Sent", "#fbbf24"},
	{"Won", "#4ade80"},
	{"Lost", "#f87171"},
}

// seedCRM creates the default sales pipeline with its standard columns.
// Running it twice creates a second pipeline.
func (cli *commandLine) seedCRM() error {
	ctx := context.Background()

	pipeline, err := cli.crmSvc.CreatePipeline(ctx, "Sales")
	if err != nil {
		return err
	}
	for i, col := range defaultColumns {
		_, err = cli.crmSvc.CreateColumn(ctx, crm.NewColumn{
			Name:       col.name,
			Color:      col.color,
			PipelineID: pipeline.ID,
			SortOrder:  i,
		})
		if err != nil {
			return err
		}
	}
	logger.Printf("seeded pipeline %q with %d columns\n", pipeline.Name, len(defaultColumns))
	return nil
}
