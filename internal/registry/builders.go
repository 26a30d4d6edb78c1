package registry

import "github.com/vk/xfiber/internal/wire"

// Service declares a service and its domains.
func Service(name string, domains ...DomainStructure) ServiceStructure {
	return ServiceStructure{Name: name, Domains: domains}
}

// Domain declares a domain and its documents.
func Domain(name string, documents DocumentsStructure) DomainStructure {
	return DomainStructure{Name: name, Documents: documents}
}

// Controller declares a controller method.
func Controller(scope Scope, handler ControllerHandler) ControllerDescriptor {
	return ControllerDescriptor{Scope: scope, Handler: handler}
}

// Emitter declares an inbound event handler. An empty version defaults to v1.
func Emitter(eventType, version, name string, scope Scope, handler EmitterHandler) EmitterDescriptor {
	if version == "" {
		version = wire.DefaultVersion
	}
	return EmitterDescriptor{Name: name, EventType: eventType, Scope: scope, Version: version, Handler: handler}
}

// Emitters keys each descriptor by its composed event key.
func Emitters(descriptors ...EmitterDescriptor) map[string]EmitterDescriptor {
	out := make(map[string]EmitterDescriptor, len(descriptors))
	for _, d := range descriptors {
		out[d.Key()] = d
	}
	return out
}

// NewDictionary declares a dictionary for one or more language tags.
func NewDictionary(dictionary Dictionary, languages ...string) DictionaryStructure {
	return DictionaryStructure{Language: languages, Dictionary: dictionary}
}

// View declares a named view.
func View(name string, view ViewHandler) ViewStructure {
	return ViewStructure{Name: name, View: view}
}
