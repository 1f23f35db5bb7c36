package handlers

import (
	"testing"

	"integrations/internal/application/entity"

	"github.com/stretchr/testify/assert"
)

func TestBuildMessage_NamedTemplate(t *testing.T) {
	msg := BuildMessage("shooting_date_approaching", map[string]string{
		"job_code":      "J-042",
		"shooting_date": "2026-03-01",
	})
	assert.Contains(t, msg, "Job: J-042")
	assert.Contains(t, msg, "Data: 2026-03-01")
	// нет значения - плейсхолдер остаётся
	assert.Contains(t, msg, "Local: {location}")
}

func TestBuildMessage_FreeText(t *testing.T) {
	assert.Equal(t, "Oi Ana, {missing}", BuildMessage("Oi {name}, {missing}", map[string]string{"name": "Ana"}))
}

func TestDefaultFolderTemplate_Count(t *testing.T) {
	var count func(n entity.FolderTemplateNode) int
	count = func(n entity.FolderTemplateNode) int {
		c := 1
		for _, ch := range n.Children {
			c += count(ch)
		}
		return c
	}
	// 26 папок + корень
	assert.Equal(t, 27, count(DefaultFolderTemplate))
}

func TestRootFolderName(t *testing.T) {
	assert.Equal(t, "J1_Promo_ACME", rootFolderName("{CODE}_{TITLE}_{CLIENT}", &entity.JobRef{Code: "J1", Title: "Promo", ClientName: "ACME"}))
	assert.Equal(t, "SEM-CODIGO_SEM-TITULO_SEM-CLIENTE", rootFolderName("{CODE}_{TITLE}_{CLIENT}", &entity.JobRef{}))
}

func TestTemplateFileName(t *testing.T) {
	job := entity.JobRef{Code: "J7", JobAba: "ABA", ClientName: "ACME"}
	assert.Equal(t, "ABA - J7 - ACME - Contrato", templateFileName("{JOB_ABA} - {JOB_CODE} - {CLIENT} - Contrato", job))
}
