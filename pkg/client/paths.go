package client

import "github.com/yosida95/uritemplate/v3"

// Endpoint templates, relative to the API root.
var (
	documentsPath          = uritemplate.MustNew("/documents{?page,pageSize,size,includeDeleted}")
	documentPath           = uritemplate.MustNew("/documents/{id}")
	documentDeletePath     = uritemplate.MustNew("/documents/{id}{?reason}")
	documentRestorePath    = uritemplate.MustNew("/documents/{id}/restore")
	documentHardDeletePath = uritemplate.MustNew("/documents/{id}/hard")
	documentMetadataPath   = uritemplate.MustNew("/documents/{id}/metadata")
	documentDownloadPath   = uritemplate.MustNew("/documents/{id}/download")
	documentPreviewPath    = uritemplate.MustNew("/documents/{id}/preview")
	documentDownloadURL    = uritemplate.MustNew("/documents/{id}/download-url")
	versionsPath           = uritemplate.MustNew("/documents/{id}/versions")
	versionPath            = uritemplate.MustNew("/documents/{id}/versions/{version}")
	versionRestorePath     = uritemplate.MustNew("/documents/{id}/versions/{version}/restore")
	bulkDownloadPath       = uritemplate.MustNew("/documents/bulk-download")
	retentionStatusPath    = uritemplate.MustNew("/documents/{id}/retention-status")
	retentionSetPath       = uritemplate.MustNew("/documents/{id}/retention")

	legalHoldsPath        = uritemplate.MustNew("/legal-holds{?caseReference}")
	legalHoldReleasePath  = uritemplate.MustNew("/legal-holds/{id}{?reason}")
	legalHoldDocumentPath = uritemplate.MustNew("/legal-holds/document/{id}")

	retentionCountPath   = uritemplate.MustNew("/admin/retention/count")
	retentionProcessPath = uritemplate.MustNew("/admin/retention/process")

	searchPath             = uritemplate.MustNew("/search")
	searchBulkDownloadPath = uritemplate.MustNew("/search/bulk-download")
	hybridSearchPath       = uritemplate.MustNew("/search-hybrid{?query,page,pageSize,size}")

	documentTypesPath       = uritemplate.MustNew("/document-types{?page,pageSize,size}")
	activeDocumentTypesPath = uritemplate.MustNew("/document-types/active")
	groupsPath              = uritemplate.MustNew("/groups{?page,pageSize,size}")

	auditLogsPath       = uritemplate.MustNew("/audit/logs{?page,pageSize,size}")
	auditLogPath        = uritemplate.MustNew("/audit/logs/{id}")
	auditDocumentPath   = uritemplate.MustNew("/audit/logs/document/{id}{?page,pageSize,size}")
	auditUserPath       = uritemplate.MustNew("/audit/logs/user/{id}{?page,pageSize,size}")
	auditStatisticsPath = uritemplate.MustNew("/audit/statistics{?startTime,endTime}")
	auditExportPath     = uritemplate.MustNew("/audit/export{?format,startTime,endTime}")
)
