package registry

// ServiceStructure is the declarative input for one service.
type ServiceStructure struct {
	Name    string
	Domains []DomainStructure
}

// DomainStructure is the declarative input for one domain.
type DomainStructure struct {
	Name      string
	Documents DocumentsStructure
}

// DocumentsStructure holds the optional sub-structures of a domain. Every
// nil field defaults to an empty mapping, except Store which stays absent.
type DocumentsStructure struct {
	Controller map[string]ControllerDescriptor
	Emitter    map[string]EmitterDescriptor
	// Dictionary accepts one or more dictionaries; each may fan out to
	// several language tags.
	Dictionary []DictionaryStructure
	Store      *StoreDescriptor
	Views      []ViewStructure
	Validator  map[string]ValidatorHandler
	Helper     map[string]any
}

// DictionaryStructure registers Dictionary under every tag in Language.
type DictionaryStructure struct {
	Language   []string
	Dictionary Dictionary
}

// ViewStructure registers a named view.
type ViewStructure struct {
	Name string
	View ViewHandler
}
