// Package datasources is the data-binding core of a visual page editor.
//
// Pages built in the editor show values that come from named data sources:
// collections of records, each record a set of fields. A component on the
// page binds to one field through a path, and re-renders whenever that
// field changes. This package holds the sources, resolves the paths, and
// tells each binding exactly when its value may have changed.
//
// # Architecture Overview
//
// An Editor session owns four parts:
//  1. **Registry**: the named data sources, each an ordered list of records
//  2. **Hub**: a synchronous publish/subscribe bus with topics per registry
//     action and per path
//  3. **Bindings**: live values addressed by "source.record.field" paths
//  4. **Audit trail**: an optional SQLite or JSON lines log of every mutation
//
// Everything is single threaded. A mutation notifies every interested
// subscriber before it returns, so a binding's value is always current when
// the mutating call completes.
//
// # Paths
//
// A path names a source, a record and a field. Segments are separated by
// dots; a segment holding dots or brackets is written in brackets, quoted
// if needed:
//
//	products.p1.title
//	products[p1].title
//	products["sku.42"]["price"]
//
// A path with any other number of segments is malformed: a binding on it
// always shows its default value.
//
// # Bindings
//
//	editor := datasources.New(datasources.Config{})
//	defer editor.Close()
//
//	price := editor.Bind("products.p1.price", 0)
//	price.OnChange(func(change datasources.BindingChange) {
//		fmt.Println("price is now", change.New)
//	})
//
//	editor.DataSources().Add(datasources.SourceProps{
//		ID:      "products",
//		Records: []datasources.RecordProps{{"id": "p1", "price": 12}},
//	})
//	// prints "price is now 12"
//
// A binding pulls its value from the registry on every notification it
// receives and only calls its callbacks when the value really changed.
// Export(true) keeps the binding itself in a saved page; Export(false)
// freezes its current value.
//
// # Notification scopes
//
// Registry and source actions publish on their own topics ("add", "remove",
// "reset", "source:<id>:<action>"), and on the path topic of the smallest
// address they affect:
//
//	field set or unset      path:<source>.<record>.<field>
//	record add or remove    path:<source>.<record>
//	source add, remove, reset, registry reset   path:<source>
//
// A binding subscribes to the three path topics of its address and so
// hears about nothing else.
//
// # Source documents and feeds
//
// ParseSources and MarshalSources read and write sources as JSON or YAML
// documents; Editor.LoadSources adds a whole document at once and
// DocumentWriter saves an export atomically. A Feed follows record
// documents on disk and keeps one source per file in sync with it; a
// started Feed hands its mutations to the editor's goroutine through a
// MutationQueue.
//
// # Configuration
//
// Config can be built in code, loaded from DATASOURCES_* environment
// variables (LoadConfigFromEnv), merged from a JSON file and the
// environment (LoadConfigMultiSource), or assembled from command-line flags
// with ConfigManager.
//
// # Errors
//
// Errors carry a DATASOURCES_* code from github.com/agilira/go-errors:
//
//	if _, err := registry.Add(props); datasources.IsDuplicateID(err) {
//		...
//	}
//
// Errors without a caller (a panicking subscriber, a feed that cannot parse
// its file) go to Config.ErrorHandler, or to stderr when none is set.
//
// Repository: https://github.com/agilira/datasources
package datasources
