// Package api serves the sitepublish REST API.
//
//	@title						Sitepublish API
//	@version					1.0
//	@description				Publishes generated tenant sites and connects their custom domains.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						X-API-Key
package api

//go:generate go tool swag init -g doc.go -d .,./handler,./request,./response,../model -o docs --outputTypes json --parseInternal
