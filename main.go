package main

import "wapulse/cmd"

//go:generate swag init --parseInternal --outputTypes go

// @title                       wapulse API
// @version                     1.0
// @description                 Multi-tenant WhatsApp Business messaging backend.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cmd.Execute()
}
