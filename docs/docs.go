// Package docs registers the OpenAPI description of the batch API with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/batches": {
            "get": {
                "description": "Get every batch with its current status, newest first",
                "produces": ["application/json"],
                "tags": ["batches"],
                "summary": "List all batches",
                "responses": {
                    "200": {
                        "description": "List of batches",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/model.BatchRecord"}}
                    },
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            },
            "post": {
                "description": "Validate the batch configuration, store it and run it asynchronously. Omitted fields take the server defaults.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["batches"],
                "summary": "Create a new batch",
                "parameters": [
                    {
                        "description": "Batch configuration",
                        "name": "batch",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/model.BatchSpec"}
                    }
                ],
                "responses": {
                    "202": {"description": "Batch accepted", "schema": {"$ref": "#/definitions/handler.BatchCreated"}},
                    "400": {"description": "Invalid request payload", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/batches/{id}": {
            "get": {
                "description": "Retrieve the configuration, status and batch level errors of a batch",
                "produces": ["application/json"],
                "tags": ["batches"],
                "summary": "Get batch",
                "parameters": [{"type": "string", "description": "Batch ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Batch details", "schema": {"$ref": "#/definitions/handler.BatchDetail"}},
                    "404": {"description": "Batch not found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/batches/{id}/cancel": {
            "post": {
                "description": "Stop admitting new items; items already in flight finish, the rest are recorded as cancelled",
                "produces": ["application/json"],
                "tags": ["batches"],
                "summary": "Cancel batch",
                "parameters": [{"type": "string", "description": "Batch ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "202": {"description": "Cancellation requested", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "404": {"description": "Batch not found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "409": {"description": "Batch is not running", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/batches/{id}/failures": {
            "get": {
                "description": "Retrieve every failed item with its error text",
                "produces": ["application/json"],
                "tags": ["batches"],
                "summary": "Get batch failures",
                "parameters": [
                    {"type": "string", "description": "Batch ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Only this stage (fetch or transform)", "name": "stage", "in": "query"}
                ],
                "responses": {
                    "200": {
                        "description": "Failed items",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/model.FailureRecord"}}
                    },
                    "400": {"description": "Unknown stage", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "404": {"description": "Batch not found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/batches/{id}/metrics": {
            "get": {
                "description": "Retrieve counts, elapsed time and throughput of every finished stage",
                "produces": ["application/json"],
                "tags": ["batches"],
                "summary": "Get batch metrics",
                "parameters": [{"type": "string", "description": "Batch ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {
                        "description": "Stage metrics",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/model.BatchMetrics"}}
                    },
                    "404": {"description": "Batch not found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.BatchCreated": {
            "type": "object",
            "properties": {
                "batchID": {"type": "string"},
                "createdAt": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "string"},
                "warnings": {"type": "array", "items": {"type": "string"}}
            }
        },
        "handler.BatchDetail": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string"},
                "spec": {"$ref": "#/definitions/model.BatchSpec"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"},
                "running": {"type": "boolean"},
                "errors": {"type": "array", "items": {"$ref": "#/definitions/model.ErrorDetail"}}
            }
        },
        "handler.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "model.BatchMetrics": {
            "type": "object",
            "properties": {
                "stage": {"type": "string"},
                "total_items": {"type": "integer"},
                "succeeded": {"type": "integer"},
                "failed": {"type": "integer"},
                "failed_ids": {"type": "array", "items": {"type": "integer"}},
                "failures": {"type": "object", "additionalProperties": {"type": "string"}},
                "elapsed_seconds": {"type": "number"},
                "throughput_items_per_sec": {"type": "number"},
                "started_at": {"type": "string"},
                "finished_at": {"type": "string"}
            }
        },
        "model.BatchRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string"},
                "spec": {"$ref": "#/definitions/model.BatchSpec"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "model.BatchSpec": {
            "type": "object",
            "properties": {
                "itemCount": {"type": "integer"},
                "mode": {"type": "string", "enum": ["sequential", "pipelined"]},
                "workers": {"$ref": "#/definitions/model.Workers"},
                "source": {"$ref": "#/definitions/model.Source"},
                "output": {"$ref": "#/definitions/model.Output"},
                "fetch": {"$ref": "#/definitions/model.FetchPolicy"},
                "transform": {"$ref": "#/definitions/model.TransformSettings"},
                "reportInterval": {"type": "integer"}
            }
        },
        "model.ErrorDetail": {
            "type": "object",
            "properties": {
                "batch_id": {"type": "string"},
                "code": {"type": "string"},
                "message": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "model.FailureRecord": {
            "type": "object",
            "properties": {
                "batch_id": {"type": "string"},
                "stage": {"type": "string"},
                "item_id": {"type": "integer"},
                "error": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "model.FetchPolicy": {
            "type": "object",
            "properties": {
                "timeout": {"type": "string"},
                "maxAttempts": {"type": "integer"},
                "backoff": {"type": "string"},
                "backoffMultiplier": {"type": "number"},
                "maxBackoff": {"type": "string"}
            }
        },
        "model.Output": {
            "type": "object",
            "properties": {
                "rawDir": {"type": "string"},
                "processedDir": {"type": "string"}
            }
        },
        "model.Source": {
            "type": "object",
            "properties": {
                "baseUrl": {"type": "string"},
                "filePattern": {"type": "string"}
            }
        },
        "model.TransformSettings": {
            "type": "object",
            "properties": {
                "blurRadius": {"type": "number"},
                "secondBlurRadius": {"type": "number"},
                "contrastFactor": {"type": "number"},
                "upscaleFactor": {"type": "integer"},
                "quality": {"type": "integer"},
                "optimize": {"type": "boolean"},
                "timeout": {"type": "string"}
            }
        },
        "model.Workers": {
            "type": "object",
            "properties": {
                "io": {"type": "integer"},
                "cpu": {"type": "integer", "maximum": 8}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Image Batch Pipeline API",
	Description:      "Start, inspect and cancel bounded fetch and transform batches.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
