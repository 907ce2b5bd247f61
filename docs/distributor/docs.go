// Package distributor Swagger document of the distributor ops API, in swag
// init layout: swag init -g cmd/distributor/main.go -o docs/distributor --instanceName distributor
package distributor

import "github.com/swaggo/swag"

const docTemplatedistributor = `{
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
        "/assets/due": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Distribution"
                ],
                "summary": "List due assets",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Trigger type filter (due_date, inactivity), repeatable",
                        "name": "trigger",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "default": 100,
                        "description": "Max candidates to scan",
                        "name": "limit",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/respond.Response"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/respond.AssetListResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    }
                }
            }
        },
        "/assets/{id}": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Distribution"
                ],
                "summary": "Get asset",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Asset ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/respond.Response"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/respond.AssetResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/respond.Response"
                        }
                    }
                }
            }
        },
        "/assets/{id}/attempts": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Distribution"
                ],
                "summary": "List distribution attempts",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Asset ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/respond.Response"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/respond.AttemptListResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    }
                }
            }
        },
        "/assets/{id}/receipt": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Distribution"
                ],
                "summary": "Get distribution receipt",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Asset ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/respond.Response"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/storage.ReceiptRecord"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/respond.Response"
                        }
                    }
                }
            }
        },
        "/schedulers": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Distribution"
                ],
                "summary": "Scheduler status",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/respond.Response"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/respond.SchedulerListResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "respond.AssetListResponse": {
            "type": "object",
            "properties": {
                "assets": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/respond.AssetResponse"
                    }
                },
                "total": {
                    "type": "integer",
                    "example": 1
                }
            }
        },
        "respond.AssetResponse": {
            "type": "object",
            "properties": {
                "asset_type": {
                    "type": "string",
                    "example": "COTI"
                },
                "balance": {
                    "type": "string",
                    "example": "1000000000000000000"
                },
                "beneficiaries": {
                    "type": "integer",
                    "example": 2
                },
                "distributed": {
                    "type": "boolean"
                },
                "distributed_at": {
                    "type": "string"
                },
                "distributed_tx_hash": {
                    "type": "string"
                },
                "id": {
                    "type": "integer",
                    "example": 42
                },
                "is_now_due_date": {
                    "type": "boolean"
                },
                "last_activity_score": {
                    "type": "number",
                    "example": 2
                },
                "last_scored_at": {
                    "type": "string"
                },
                "trigger_type": {
                    "type": "string",
                    "example": "due_date"
                },
                "trigger_value": {
                    "type": "integer",
                    "example": 1700000000
                },
                "validated_created": {
                    "type": "boolean"
                },
                "validated_funds": {
                    "type": "boolean"
                },
                "wallet_address": {
                    "type": "string",
                    "example": "0x1014BD7f50abb2A3107EC701701fb93542912e3a"
                },
                "will_id": {
                    "type": "integer",
                    "example": 7
                }
            }
        },
        "respond.AttemptListResponse": {
            "type": "object",
            "properties": {
                "asset_id": {
                    "type": "integer"
                },
                "attempts": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/respond.AttemptResponse"
                    }
                }
            }
        },
        "respond.AttemptResponse": {
            "type": "object",
            "properties": {
                "asset_id": {
                    "type": "integer"
                },
                "block_number": {
                    "type": "integer"
                },
                "error_message": {
                    "type": "string"
                },
                "gas_price_wei": {
                    "type": "string"
                },
                "id": {
                    "type": "string"
                },
                "nonce": {
                    "type": "integer"
                },
                "parameter": {
                    "type": "string"
                },
                "resolved_at": {
                    "type": "string"
                },
                "status": {
                    "description": "pending, unknown, confirmed, reverted, failed",
                    "type": "string",
                    "example": "confirmed"
                },
                "submitted_at": {
                    "type": "string"
                },
                "trigger_type": {
                    "type": "string"
                },
                "tx_hash": {
                    "type": "string"
                }
            }
        },
        "respond.Response": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "integer",
                    "example": 0
                },
                "data": {},
                "message": {
                    "type": "string",
                    "example": "success"
                },
                "processingTime": {
                    "description": "milliseconds",
                    "type": "integer",
                    "example": 3
                }
            }
        },
        "respond.SchedulerListResponse": {
            "type": "object",
            "properties": {
                "schedulers": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/scheduler_service.Stats"
                    }
                }
            }
        },
        "scheduler_service.Stats": {
            "type": "object",
            "properties": {
                "candidates": {
                    "type": "integer"
                },
                "confirmed": {
                    "type": "integer"
                },
                "cycle_finished_at": {
                    "type": "string"
                },
                "cycle_started_at": {
                    "type": "string"
                },
                "cycles": {
                    "type": "integer"
                },
                "due": {
                    "type": "integer"
                },
                "failed": {
                    "type": "integer"
                },
                "interval": {
                    "type": "string"
                },
                "last_error": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "reverted": {
                    "type": "integer"
                },
                "skipped": {
                    "type": "integer"
                },
                "trigger_types": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "unknown": {
                    "type": "integer"
                }
            }
        },
        "storage.ReceiptRecord": {
            "type": "object",
            "properties": {
                "asset_id": {
                    "type": "integer"
                },
                "block_number": {
                    "type": "integer"
                },
                "confirmed_at": {
                    "type": "string"
                },
                "gas_price_wei": {
                    "type": "string"
                },
                "nonce": {
                    "type": "integer"
                },
                "parameter": {
                    "type": "string"
                },
                "trigger_type": {
                    "type": "string"
                },
                "tx_hash": {
                    "type": "string"
                },
                "wallet_address": {
                    "type": "string"
                },
                "will_id": {
                    "type": "integer"
                }
            }
        }
    }
}`

// SwaggerInfodistributor holds exported Swagger Info so clients can modify it
var SwaggerInfodistributor = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Digital Will Distributor Ops API",
	Description:      "Read-only view of assets, distribution attempts and scheduler loops",
	InfoInstanceName: "distributor",
	SwaggerTemplate:  docTemplatedistributor,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfodistributor.InstanceName(), SwaggerInfodistributor)
}
