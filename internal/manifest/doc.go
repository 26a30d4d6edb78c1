// Package manifest loads declarative business-module manifests written in
// HCL and turns them into the ordered registry input.
//
// A manifest names Go handlers registered in a handlers.Handlers table:
//
//	service "chat" {
//	  domain "room" {
//	    controller "list" {
//	      scope   = "public"
//	      handler = "chat.room.list"
//	    }
//	    emitter "message" {
//	      event_type = "session:to:room"
//	      version    = "v1"
//	      handler    = "chat.room.onMessage"
//	    }
//	    dictionary {
//	      language = ["en", "en-US"]
//	      entries  = { greeting = "Hello {{name}}" }
//	    }
//	    dictionary {
//	      language = "de"
//	      file     = "dictionaries/de.yaml"
//	    }
//	    store {
//	      persistence = "persist"
//	      storage     = "local"
//	      initial     = { messages = [] }
//	    }
//	    view "title" { handler = "chat.room.title" }
//	    validator "message" { handler = "chat.room.message" }
//	    helper "format" { handler = "chat.room.format" }
//	  }
//	}
//
// Loading fails fast on unknown handlers and on invalid scopes, versions,
// event types and store kinds.
package manifest
