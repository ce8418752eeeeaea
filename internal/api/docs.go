// Package api exposes the HTTP and WebSocket surface.
package api

// @title TradeStream API
// @version 1.0
// @description User registration, bearer-token login, trade records and a live trade stream.

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8000
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @tag.name Auth
// @tag.description Registration and login

// @tag.name Trades
// @tag.description Trade records of the authenticated user

// @tag.name System
// @tag.description Banner and health
