package log

// Field names.
const (
	FieldComponent    = "component"
	FieldRequestID    = "request_id"
	FieldClientIP     = "client_ip"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldQuery        = "query"
	FieldStatusCode   = "status_code"
	FieldDuration     = "duration_ms"
	FieldUserAgent    = "user_agent"
	FieldReferer      = "referer"
	FieldSuccess      = "success"
	FieldError        = "error"
	FieldOperation    = "operation"
	FieldMonth        = "month"
	FieldTxnID        = "transaction_id"
	FieldKind         = "kind"
	FieldAmount       = "amount"
	FieldCurrency     = "currency"
	FieldCategory     = "category"
	FieldBucket       = "bucket"
	FieldRateSource   = "rate_source"
	FieldBackupTarget = "backup_target"
	FieldMonthsCount  = "months_count"
	FieldTxnCount     = "transactions_count"
)

// Components.
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentLedger   = "ledger"
	ComponentRates    = "rates"
	ComponentBackup   = "backup"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentCache    = "cache"
	ComponentSecurity = "security"
	ComponentTrace    = "trace"
	ComponentBackend  = "backend"
)

// Operations.
const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpExport    = "export"
	OpImport    = "import"
	OpReconcile = "reconcile"
	OpValidate  = "validate"
)
