// Package swagger registers the OpenAPI document served at /swagger/*any.
// Regenerate with: swag init -g cmd/review-server/main.go -o docs/swagger
package swagger

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
        "/health": {
            "get": {"tags": ["system"], "summary": "Check system health", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/reviews": {
            "post": {"tags": ["Review"], "summary": "Open a transaction review", "consumes": ["application/json"], "produces": ["application/json"], "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/request.OpenReviewRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/reviews/{id}": {
            "get": {"tags": ["Review"], "summary": "Get a transaction review", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}},
            "delete": {"tags": ["Review"], "summary": "Close a review", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/reviews/{id}/refresh": {
            "post": {"tags": ["Review"], "summary": "Re-run the explain pipeline", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/reviews/{id}/gas": {
            "post": {"tags": ["Review"], "summary": "Apply a gas editor change", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}, {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/request.GasChangeRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/reviews/{id}/custom-gas": {
            "post": {"tags": ["Review"], "summary": "Type a custom gas price", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}, {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/request.CustomGasRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/reviews/{id}/ack": {
            "post": {"tags": ["Review"], "summary": "Acknowledge warn and danger findings", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}, {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/request.ToggleRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/reviews/{id}/force": {
            "post": {"tags": ["Review"], "summary": "Toggle force process on a warn or danger security decision", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}, {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/request.ToggleRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/reviews/{id}/allow": {
            "post": {"tags": ["Review"], "summary": "Approve the transaction", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}, {"in": "body", "name": "request", "schema": {"$ref": "#/definitions/request.AllowRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/pending": {
            "get": {"tags": ["Pending"], "summary": "List an account's pending transactions", "parameters": [{"in": "query", "name": "chainId", "type": "integer", "required": true}, {"in": "query", "name": "address", "type": "string", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}},
            "post": {"tags": ["Pending"], "summary": "Record a broadcast transaction", "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/request.PendingTxRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/signs": {
            "post": {"tags": ["Sign"], "summary": "Open a typed-data signature review", "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/request.OpenSignRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/signs/{id}": {
            "get": {"tags": ["Sign"], "summary": "Get a typed-data signature review", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/signs/{id}/check": {
            "post": {"tags": ["Sign"], "summary": "Run the security check of a typed-data review", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/signs/{id}/force": {
            "post": {"tags": ["Sign"], "summary": "Toggle force process of a typed-data review", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}, {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/request.ToggleRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/signs/{id}/allow": {
            "post": {"tags": ["Sign"], "summary": "Approve a typed-data signature", "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}, {"in": "body", "name": "request", "schema": {"$ref": "#/definitions/request.AllowRequest"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        }
    },
    "definitions": {
        "request.AccountRequest": {"type": "object", "required": ["address", "type"], "properties": {"address": {"type": "string"}, "type": {"type": "string"}}},
        "request.OpenReviewRequest": {"type": "object", "required": ["account", "tx"], "properties": {"tx": {"type": "object", "additionalProperties": true}, "origin": {"type": "string"}, "account": {"$ref": "#/definitions/request.AccountRequest"}, "safeNetworkId": {"type": "integer"}}},
        "request.GasChangeRequest": {"type": "object", "required": ["gasLimit", "level"], "properties": {"level": {"type": "string", "enum": ["slow", "normal", "fast", "custom"]}, "price": {"type": "string"}, "gasLimit": {"type": "string"}, "nonce": {"type": "integer"}}},
        "request.CustomGasRequest": {"type": "object", "required": ["gwei"], "properties": {"gwei": {"type": "string"}}},
        "request.ToggleRequest": {"type": "object", "required": ["value"], "properties": {"value": {"type": "boolean"}}},
        "request.AllowRequest": {"type": "object", "properties": {"doubleCheck": {"type": "boolean"}}},
        "request.OpenSignRequest": {"type": "object", "required": ["account", "method", "params"], "properties": {"method": {"type": "string"}, "params": {"type": "array", "items": {}}, "origin": {"type": "string"}, "account": {"$ref": "#/definitions/request.AccountRequest"}}},
        "request.PendingTxRequest": {"type": "object", "required": ["chainId", "from", "hash"], "properties": {"chainId": {"type": "integer"}, "hash": {"type": "string"}, "nonce": {"type": "integer"}, "from": {"type": "string"}, "to": {"type": "string"}, "data": {"type": "string"}, "value": {"type": "string"}, "gasPrice": {"type": "string"}, "maxFeePerGas": {"type": "string"}, "gasUsed": {"type": "integer"}, "gasLimit": {"type": "string"}}},
        "response.Response": {"type": "object", "properties": {"code": {"type": "integer"}, "msg": {"type": "string"}, "data": {}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Transaction Review API",
	Description:      "Gas, nonce and risk review of wallet transactions and typed-data signatures.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
