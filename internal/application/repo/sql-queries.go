package repo

const eventColumns = `id, tenant_id, event_type, payload, status, attempts, locked_at, started_at,
	processed_at, next_retry_at, error_message, result, idempotency_key, created_at`

const insertEventSQL = `
INSERT INTO integration_events (tenant_id, event_type, payload, status, attempts, idempotency_key)
VALUES ($1, $2, ($3)::jsonb, 'pending', 0, $4)
ON CONFLICT (tenant_id, idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING
RETURNING id`

const getEventIDByKeySQL = `
SELECT id FROM integration_events WHERE tenant_id = $1 AND idempotency_key = $2`

// claimBatchSQL pending без отложенного ретрая либо processing с протухшим локом.
// attempts увеличивается только здесь
const claimBatchSQL = `
WITH picked AS (
	SELECT id
	FROM integration_events
	WHERE (status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= now()))
		OR (status = 'processing' AND locked_at < now() - $2::interval AND attempts < $3)
	ORDER BY created_at
	LIMIT $1
	FOR UPDATE SKIP LOCKED
)
UPDATE integration_events AS e
SET status = 'processing',
	locked_at = now(),
	started_at = COALESCE(e.started_at, now()),
	attempts = e.attempts + 1
FROM picked
WHERE e.id = picked.id
RETURNING e.id, e.tenant_id, e.event_type, e.payload, e.status, e.attempts, e.locked_at, e.started_at,
	e.processed_at, e.next_retry_at, e.error_message, e.result, e.idempotency_key, e.created_at`

// failExhaustedSQL воркер умер на последней попытке: повторять уже нельзя.
// строки под локом другого claim пропускаем, их закроет он
const failExhaustedSQL = `
WITH exhausted AS (
	SELECT id
	FROM integration_events
	WHERE status = 'processing' AND locked_at < now() - $1::interval AND attempts >= $2
	FOR UPDATE SKIP LOCKED
)
UPDATE integration_events AS e
SET status = 'failed',
	locked_at = NULL,
	processed_at = now(),
	next_retry_at = NULL,
	error_message = COALESCE(e.error_message || '; ', '') || $3::text
FROM exhausted
WHERE e.id = exhausted.id`

const markCompletedSQL = `
UPDATE integration_events
SET status = 'completed',
	processed_at = now(),
	locked_at = NULL,
	next_retry_at = NULL,
	error_message = NULL,
	result = ($3)::jsonb
WHERE id = $1 AND status = 'processing' AND attempts = $2`

const markRetrySQL = `
UPDATE integration_events
SET status = 'pending',
	locked_at = NULL,
	error_message = $3,
	next_retry_at = $4
WHERE id = $1 AND status = 'processing' AND attempts = $2`

const markFailedSQL = `
UPDATE integration_events
SET status = 'failed',
	processed_at = now(),
	locked_at = NULL,
	next_retry_at = NULL,
	error_message = $3
WHERE id = $1 AND status = 'processing' AND attempts = $2`

const getEventSQL = `SELECT ` + eventColumns + ` FROM integration_events WHERE id = $1`

const purgeCompletedSQL = `
DELETE FROM integration_events
WHERE status = 'completed' AND processed_at < now() - make_interval(days => $1)`

// TENANTS
const getTenantSettingsSQL = `SELECT settings FROM tenants WHERE id = $1`

const listTenantAdminsSQL = `
SELECT id FROM profiles
WHERE tenant_id = $1 AND role IN ('admin', 'ceo') AND is_active`

const insertNotificationSQL = `
INSERT INTO notifications (tenant_id, user_id, type, priority, title, body, metadata, action_url, job_id)
VALUES ($1, $2, $3, $4, $5, $6, ($7)::jsonb, $8, $9)`

const readSecretSQL = `SELECT read_secret($1)`

// HANDLER STATE
const getJobSQL = `
SELECT j.id, j.code, j.job_aba, j.title, COALESCE(NULLIF(c.company_name, ''), c.name, '')
FROM jobs j
LEFT JOIN clients c ON c.id = j.client_id
WHERE j.id = $1 AND j.tenant_id = $2 AND j.deleted_at IS NULL`

const setJobDriveURLSQL = `UPDATE jobs SET drive_folder_url = $3 WHERE id = $1 AND tenant_id = $2`

const getDriveFolderSQL = `
SELECT id, folder_key, google_drive_id, url
FROM drive_folders
WHERE tenant_id = $1 AND job_id = $2 AND folder_key = $3 AND deleted_at IS NULL`

const upsertDriveFolderSQL = `
INSERT INTO drive_folders (tenant_id, job_id, folder_key, google_drive_id, url, parent_folder_id)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (tenant_id, job_id, folder_key) DO UPDATE
SET google_drive_id = EXCLUDED.google_drive_id,
	url = EXCLUDED.url,
	parent_folder_id = EXCLUDED.parent_folder_id,
	deleted_at = NULL
RETURNING id`

const jobFileExistsSQL = `
SELECT EXISTS (
	SELECT 1 FROM job_files
	WHERE tenant_id = $1 AND job_id = $2 AND external_id = $3 AND deleted_at IS NULL
)`

const insertJobFileSQL = `
INSERT INTO job_files (tenant_id, job_id, file_name, file_type, drive_file_id, drive_url, external_id, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, ($8)::jsonb)`

const activeSubmissionExistsSQL = `
SELECT EXISTS (
	SELECT 1 FROM docuseal_submissions
	WHERE tenant_id = $1 AND job_id = $2 AND person_email = $3 AND docuseal_template_id = $4
		AND deleted_at IS NULL
		AND docuseal_status NOT IN ('declined', 'expired', 'error')
)`

const insertSubmissionSQL = `
INSERT INTO docuseal_submissions (
	tenant_id, job_id, person_id, person_name, person_email, person_cpf,
	docuseal_submission_id, docuseal_template_id, docuseal_status, contract_data,
	sent_at, created_by, metadata
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'sent', ($9)::jsonb, now(), $10, ($11)::jsonb)
RETURNING id`

const insertWhatsappMessageSQL = `
INSERT INTO whatsapp_messages (
	tenant_id, job_id, phone, recipient_name, message, status, provider, external_message_id, sent_at
) VALUES ($1, $2, $3, $4, $5, $6, 'evolution', $7, CASE WHEN $6 = 'sent' THEN now() END)`
