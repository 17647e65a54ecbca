package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Chapter Points API",
        "description": "Gamification points ledger: awards, totals, leaderboards and reconciliation.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"},
        "InternalToken": {"type": "apiKey", "in": "header", "name": "X-Internal-Token"}
    },
    "tags": [
        {"name": "Awards", "description": "Event intake from domain services"},
        {"name": "Points", "description": "Totals, history and leaderboards"},
        {"name": "PointDefinitions", "description": "Scoring catalog administration"},
        {"name": "Reconciliation", "description": "Ledger audit and repair"}
    ],
    "paths": {
        "/internal/awards": {
            "post": {
                "tags": ["Awards"],
                "summary": "Report a qualifying event",
                "description": "Idempotent on (user_id, point_key, source_type, source_id). Retry on 503.",
                "security": [{"InternalToken": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/AwardEventRequest"}}
                ],
                "responses": {
                    "200": {"description": "AWARDED, ALREADY_AWARDED or NO_AWARD", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Storage failure; safe to retry", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/internal/events/{event}": {
            "post": {
                "tags": ["Awards"],
                "summary": "Notify a domain event",
                "description": "Storage failures are retried in the background.",
                "security": [{"InternalToken": []}],
                "parameters": [
                    {"in": "path", "name": "event", "required": true, "type": "string",
                     "enum": ["one-to-one", "referral", "thank-you-note", "chief-guest", "power-date", "community-post"]},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/EventNotification"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/points/users/{userId}/totals/{pointKey}": {
            "get": {
                "tags": ["Points"],
                "summary": "Get a user's total for one point key",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "userId", "required": true, "type": "string"},
                    {"in": "path", "name": "pointKey", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/points/users/{userId}/summary": {
            "get": {
                "tags": ["Points"],
                "summary": "Get a user's totals per point key",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "userId", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/points/users/{userId}/history": {
            "get": {
                "tags": ["Points"],
                "summary": "List a user's ledger entries",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "userId", "required": true, "type": "string"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "limit", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/points/leaderboard": {
            "get": {
                "tags": ["Points"],
                "summary": "Ranked points leaderboard",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "source", "type": "string", "enum": ["aggregate", "ledger"]},
                    {"in": "query", "name": "pointKey", "type": "string"},
                    {"in": "query", "name": "userIds", "type": "string"},
                    {"in": "query", "name": "since", "type": "string", "format": "date-time"},
                    {"in": "query", "name": "until", "type": "string", "format": "date-time"},
                    {"in": "query", "name": "limit", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/points/leaderboard/export": {
            "get": {
                "tags": ["Points"],
                "summary": "Download the leaderboard",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/points/definitions": {
            "get": {
                "tags": ["PointDefinitions"],
                "summary": "List point definitions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "includeInactive", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["PointDefinitions"],
                "summary": "Create a point definition",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/PointDefinition"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Key exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/points/definitions/{key}": {
            "put": {
                "tags": ["PointDefinitions"],
                "summary": "Update a point definition",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "key", "required": true, "type": "string"},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/PointDefinition"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["PointDefinitions"],
                "summary": "Soft-delete a point definition",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "key", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/points/reconciliation/drift": {
            "get": {
                "tags": ["Reconciliation"],
                "summary": "Compare aggregates with ledger totals",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "userIds", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/points/reconciliation/repair": {
            "post": {
                "tags": ["Reconciliation"],
                "summary": "Overwrite drifted aggregates with ledger totals",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "schema": {"$ref": "#/definitions/RepairRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "AwardEventRequest": {
            "type": "object",
            "required": ["user_id", "point_key", "source_type", "source_id"],
            "properties": {
                "user_id": {"type": "string"},
                "point_key": {"type": "string"},
                "source_type": {"type": "string"},
                "source_id": {"type": "string"},
                "remarks": {"type": "string"}
            }
        },
        "EventNotification": {
            "type": "object",
            "required": ["user_id", "source_id"],
            "properties": {
                "user_id": {"type": "string"},
                "source_id": {"type": "string"},
                "post_type": {"type": "string"},
                "remarks": {"type": "string", "maxLength": 1024}
            }
        },
        "PointDefinition": {
            "type": "object",
            "properties": {
                "key": {"type": "string"},
                "display_name": {"type": "string"},
                "description": {"type": "string"},
                "value": {"type": "integer"},
                "order": {"type": "integer"},
                "active": {"type": "boolean"}
            }
        },
        "RepairRequest": {
            "type": "object",
            "properties": {
                "user_ids": {"type": "array", "items": {"type": "string"}}
            }
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
