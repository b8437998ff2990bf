package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "LMS Report API",
        "description": "Pluggable reporting engine with scheduled exports",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and identity"},
        {"name": "Reports", "description": "Report definitions and execution"},
        {"name": "Components", "description": "Plugin instances attached to reports"},
        {"name": "Schedules", "description": "Scheduled report runs"},
        {"name": "Exports", "description": "Rendered artifacts and downloads"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports": {
            "get": {
                "tags": ["Reports"],
                "summary": "List visible reports",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Reports"],
                "summary": "Create report",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateReportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/import": {
            "post": {
                "tags": ["Reports"],
                "summary": "Import report from a versioned XML document",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ImportReportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Unsupported document", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Get report",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Reports"],
                "summary": "Update report metadata",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateReportRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Reports"],
                "summary": "Delete report and its schedules",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/reports/{id}/duplicate": {
            "post": {
                "tags": ["Reports"],
                "summary": "Duplicate report",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/DuplicateReportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/{id}/execute": {
            "post": {
                "tags": ["Reports"],
                "summary": "Execute report",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/ExecuteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Access denied", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "504": {"description": "Query timeout", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/{id}/export": {
            "get": {
                "tags": ["Reports"],
                "summary": "Export report definition as XML",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/reports/{id}/audit": {
            "get": {
                "tags": ["Reports"],
                "summary": "List report audit events",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "required": false, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Access denied", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/{id}/artifact": {
            "post": {
                "tags": ["Exports"],
                "summary": "Render an artifact behind a signed download token",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/{id}/components": {
            "post": {
                "tags": ["Components"],
                "summary": "Attach component",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddComponentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Unique plugin already attached", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/{id}/components/{kind}/{instanceId}": {
            "delete": {
                "tags": ["Components"],
                "summary": "Detach component",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "kind", "in": "path", "required": true, "type": "string"},
                    {"name": "instanceId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/reports/{id}/plugins/{kind}": {
            "get": {
                "tags": ["Components"],
                "summary": "List attachable plugins for a kind",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "kind", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/{id}/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List schedules for a report",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Schedules"],
                "summary": "Create schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateScheduleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{scheduleId}": {
            "delete": {
                "tags": ["Schedules"],
                "summary": "Delete schedule",
                "parameters": [
                    {"name": "scheduleId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/schedules/{scheduleId}/run": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Fire schedule immediately",
                "parameters": [
                    {"name": "scheduleId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a rendered artifact",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "CreateReportRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "type": {"type": "string", "enum": ["users", "courses", "sql", "statistics"]},
                "course_id": {"type": "string"},
                "visible": {"type": "boolean"},
                "global": {"type": "boolean"},
                "export_formats": {"type": "array", "items": {"type": "string"}},
                "disable_table": {"type": "boolean"}
            },
            "required": ["name", "type"]
        },
        "UpdateReportRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "course_id": {"type": "string"},
                "visible": {"type": "boolean"},
                "global": {"type": "boolean"},
                "export_formats": {"type": "array", "items": {"type": "string"}},
                "disable_table": {"type": "boolean"}
            }
        },
        "DuplicateReportRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"}
            }
        },
        "ImportReportRequest": {
            "type": "object",
            "properties": {
                "document": {"type": "string"}
            },
            "required": ["document"]
        },
        "AddComponentRequest": {
            "type": "object",
            "properties": {
                "kind": {"type": "string", "enum": ["columns", "filters", "permissions", "orderby", "plot", "customsql"]},
                "plugin": {"type": "string"},
                "formdata": {"type": "object"}
            },
            "required": ["kind", "plugin"]
        },
        "ExecuteRequest": {
            "type": "object",
            "properties": {
                "filters": {"type": "object"},
                "search": {"type": "string"},
                "start_date": {"type": "string"},
                "end_date": {"type": "string"},
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "sort_column": {"type": "string"},
                "sort_dir": {"type": "string"},
                "role_switch": {"$ref": "#/definitions/RoleSwitch"}
            }
        },
        "RoleSwitch": {
            "type": "object",
            "properties": {
                "role": {"type": "string"},
                "context_level": {"type": "string", "enum": ["system", "category", "course"]}
            }
        },
        "CreateScheduleRequest": {
            "type": "object",
            "properties": {
                "frequency": {"type": "string", "enum": ["once", "daily", "weekly", "monthly", "ondemand"]},
                "run_hour": {"type": "integer"},
                "run_day": {"type": "integer"},
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "delivery": {"type": "string", "enum": ["export", "email", "both"]},
                "recipients": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["frequency", "format", "delivery"]
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
                "pagination": {"type": "object"},
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
