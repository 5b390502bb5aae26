package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Dispatch API",
        "description": "Field worker assignment planner",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Assignments", "description": "Scoring, planning and committing worker assignments"},
        {"name": "Jobs", "description": "Job backlog"},
        {"name": "Observability", "description": "Metrics and probes"}
    ],
    "paths": {
        "/assignments/score": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Score one worker against one job",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScoreWorkerRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Job or worker not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/conflicts": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Check a worker's bookings against a proposed window",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CheckConflictRequest"}}
                ],
                "responses": {
                    "200": {"description": "No conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Window overlaps an existing booking", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/plan": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Rank candidate workers for one job",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PlanRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Data source unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/plan/batch": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Plan several jobs in one pass",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchPlanRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/plan/export": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Download a batch plan as CSV or PDF",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "job_ids", "in": "query", "type": "string"},
                    {"name": "date_from", "in": "query", "type": "string"},
                    {"name": "date_to", "in": "query", "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Rendered plan", "schema": {"type": "file"}}
                }
            }
        },
        "/assignments/commit": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Assign a worker to a job after a fresh conflict check",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CommitAssignmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "Committed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Worker booked since the suggestion", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Job cancelled or worker inactive", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/batch-runs": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Queue a batch plan for background execution",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchRunRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/batch-runs/{id}": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Fetch the status and result of a batch run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown or expired run", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/exports/{token}": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Download a stored batch run export",
                "security": [],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Export file", "schema": {"type": "file"}},
                    "401": {"description": "Invalid link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Expired link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/workers/{id}/jobs": {
            "get": {
                "tags": ["Assignments"],
                "summary": "Count a worker's bookings on one date",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assignments/workers/refresh": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Drop the cached active worker roster",
                "responses": {
                    "204": {"description": "Cache cleared"}
                }
            }
        },
        "/jobs/unassigned": {
            "get": {
                "tags": ["Jobs"],
                "summary": "List jobs awaiting a worker",
                "parameters": [
                    {"name": "date_from", "in": "query", "type": "string"},
                    {"name": "date_to", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Observability"],
                "summary": "Aggregated request, cache and dispatch counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ScoreWorkerRequest": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "worker_id": {"type": "string"}
            },
            "required": ["job_id", "worker_id"]
        },
        "CheckConflictRequest": {
            "type": "object",
            "properties": {
                "worker_id": {"type": "string"},
                "date": {"type": "string", "example": "2024-07-01"},
                "start_time": {"type": "string", "example": "09:00"},
                "end_time": {"type": "string", "example": "11:00"},
                "job_id": {"type": "string"}
            },
            "required": ["worker_id", "date", "start_time", "end_time"]
        },
        "PlanRequest": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "auto_commit": {"type": "boolean"}
            },
            "required": ["job_id"]
        },
        "BatchPlanRequest": {
            "type": "object",
            "properties": {
                "job_ids": {"type": "array", "items": {"type": "string"}},
                "date_from": {"type": "string"},
                "date_to": {"type": "string"},
                "auto_commit": {"type": "boolean"}
            }
        },
        "BatchRunRequest": {
            "type": "object",
            "properties": {
                "job_ids": {"type": "array", "items": {"type": "string"}},
                "date_from": {"type": "string"},
                "date_to": {"type": "string"},
                "auto_commit": {"type": "boolean"},
                "export_format": {"type": "string", "enum": ["csv", "pdf"]}
            }
        },
        "CommitAssignmentRequest": {
            "type": "object",
            "properties": {
                "job_id": {"type": "string"},
                "worker_id": {"type": "string"}
            },
            "required": ["job_id", "worker_id"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
