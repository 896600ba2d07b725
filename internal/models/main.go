package models

// ModelRegistry lists every gorm model covered by --auto-migrate.
var ModelRegistry = []interface{}{
	&WaitlistEntry{},
}
