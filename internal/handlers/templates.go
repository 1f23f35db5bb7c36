package handlers

import (
	"regexp"
	"strings"

	"integrations/internal/application/entity"
)

var whatsappTemplates = map[string]string{
	"payment_approaching":       "*Pagamento em {days_until_due} dia(s)* \U0001F4B0\nJob: {job_code}\nR$ {amount}\nVence: {due_date}",
	"shooting_date_approaching": "*Diaria em 3 dias* \U0001F3AC\nJob: {job_code}\nData: {shooting_date}\nLocal: {location}",
	"deliverable_overdue":       "*Entregavel atrasado* ⚠️\nJob: {job_code}\n{deliverable}\nAtrasado {days_overdue} dia(s) (prazo: {delivery_date})",
}

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// BuildMessage шаблон по имени, иначе сам текст как шаблон. Отсутствующие ключи остаются {key}
func BuildMessage(template string, data map[string]string) string {
	raw, ok := whatsappTemplates[template]
	if !ok {
		raw = template
	}
	return placeholderRe.ReplaceAllStringFunc(raw, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := data[key]; ok {
			return v
		}
		return m
	})
}

// DefaultFolderTemplate структура папок job по умолчанию: 10 первого уровня + 16 второго
var DefaultFolderTemplate = entity.FolderTemplateNode{
	Key:  "root",
	Name: "{CODE}_{TITLE}_{CLIENT}",
	Children: []entity.FolderTemplateNode{
		{Key: "documentos", Name: "01_DOCUMENTOS"},
		{Key: "financeiro", Name: "02_FINANCEIRO", Children: []entity.FolderTemplateNode{
			{Key: "fin_carta_orcamento", Name: "01_CARTAORCAMENTO"},
			{Key: "fin_decupado", Name: "02_DECUPADO"},
			{Key: "fin_gastos_gerais", Name: "03_GASTOS GERAIS"},
			{Key: "fin_nf_recebimento", Name: "04_NOTAFISCAL_RECEBIMENTO"},
			{Key: "fin_comprovantes_pg", Name: "05_COMPROVANTES_PG"},
			{Key: "fin_notinhas_producao", Name: "06_NOTINHAS_EM_PRODUCAO"},
			{Key: "fin_nf_final", Name: "07_NOTAFISCAL_FINAL_PRODUCAO"},
			{Key: "fin_fechamento", Name: "08_FECHAMENTO_LUCRO_PREJUIZO"},
		}},
		{Key: "monstro_pesquisa", Name: "03_MONSTRO_PESQUISA_ARTES"},
		{Key: "cronograma", Name: "04_CRONOGRAMA"},
		{Key: "contratos", Name: "05_CONTRATOS"},
		{Key: "fornecedores", Name: "06_FORNECEDORES"},
		{Key: "clientes", Name: "07_CLIENTES"},
		{Key: "pos_producao", Name: "08_POS_PRODUCAO", Children: []entity.FolderTemplateNode{
			{Key: "pos_material_bruto", Name: "01_MATERIAL BRUTO"},
			{Key: "pos_material_limpo", Name: "02_MATERIAL LIMPO"},
			{Key: "pos_pesquisa", Name: "03_PESQUISA"},
			{Key: "pos_storyboard", Name: "04_STORYBOARD"},
			{Key: "pos_montagem", Name: "05_MONTAGEM"},
			{Key: "pos_color", Name: "06_COLOR"},
			{Key: "pos_finalizacao", Name: "07_FINALIZACAO"},
			{Key: "pos_copias", Name: "08_COPIAS"},
		}},
		{Key: "atendimento", Name: "09_ATENDIMENTO"},
		{Key: "vendas", Name: "10_VENDAS_PRODUTOR_EXECUTIVO"},
	},
}

func rootFolderName(pattern string, job *entity.JobRef) string {
	return strings.NewReplacer(
		"{CODE}", orDefault(job.Code, "SEM-CODIGO"),
		"{TITLE}", orDefault(job.Title, "SEM-TITULO"),
		"{CLIENT}", orDefault(job.ClientName, "SEM-CLIENTE"),
	).Replace(pattern)
}

func templateFileName(pattern string, job entity.JobRef) string {
	return strings.NewReplacer(
		"{JOB_ABA}", job.JobAba,
		"{JOB_CODE}", job.Code,
		"{CLIENT}", job.ClientName,
	).Replace(pattern)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
