package manifest

import "github.com/zclconf/go-cty/cty"

type fileSchema struct {
	Services []*serviceBlock `hcl:"service,block"`
}

type serviceBlock struct {
	Name    string         `hcl:"name,label"`
	Domains []*domainBlock `hcl:"domain,block"`
}

type domainBlock struct {
	Name         string             `hcl:"name,label"`
	Controllers  []*controllerBlock `hcl:"controller,block"`
	Emitters     []*emitterBlock    `hcl:"emitter,block"`
	Dictionaries []*dictionaryBlock `hcl:"dictionary,block"`
	Store        *storeBlock        `hcl:"store,block"`
	Views        []*handlerBlock    `hcl:"view,block"`
	Validators   []*handlerBlock    `hcl:"validator,block"`
	Helpers      []*handlerBlock    `hcl:"helper,block"`
}

type controllerBlock struct {
	Name    string `hcl:"name,label"`
	Scope   string `hcl:"scope,optional"`
	Handler string `hcl:"handler"`
}

type emitterBlock struct {
	Name      string `hcl:"name,label"`
	EventType string `hcl:"event_type"`
	Version   string `hcl:"version,optional"`
	Scope     string `hcl:"scope,optional"`
	Handler   string `hcl:"handler"`
}

// dictionaryBlock carries either inline entries or a file reference.
// language is a single tag or a list of tags.
type dictionaryBlock struct {
	Language cty.Value `hcl:"language"`
	Entries  cty.Value `hcl:"entries,optional"`
	File     string    `hcl:"file,optional"`
}

type storeBlock struct {
	Persistence    string    `hcl:"persistence,optional"`
	Storage        string    `hcl:"storage,optional"`
	Version        int       `hcl:"version,optional"`
	SkipHydration  *bool     `hcl:"skip_hydration,optional"`
	Initial        cty.Value `hcl:"initial,optional"`
	InitialHandler string    `hcl:"initial_handler,optional"`
}

type handlerBlock struct {
	Name    string `hcl:"name,label"`
	Handler string `hcl:"handler"`
}
