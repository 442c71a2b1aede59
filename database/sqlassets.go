package sqlassets

import _ "embed"

//go:embed schema/properties.sql
var PropertiesSQL string

//go:embed schema/leads.sql
var LeadsSQL string

//go:embed schema/documents/lead.schema.json
var LeadDocumentSchema []byte

//go:embed schema/documents/property.schema.json
var PropertyDocumentSchema []byte
