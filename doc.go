// Package fieldvault provides schema-driven, field-level encryption for
// documents stored in MongoDB, backed by versioned symmetric keys exported
// from HashiCorp Vault's transit secrets engine.
//
// A declarative schema names the dotted field paths of each collection that
// must be encrypted, optionally guarded by per-document skip rules. The
// Interceptor walks each document before it is persisted and after it is
// loaded, locating every addressed leaf across nested maps, structs and
// lists, and encrypting or decrypting it in place. Leaf values keep their
// original runtime type through a reversible tagged-string encoding, and
// ciphertexts carry the key version they were produced with, so old data
// stays readable across key rotations.
//
// Basic usage:
//
//	exporter, err := vaulttransit.New(cfg.TransitPath, cfg.TransitKey)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	transit, err := fieldvault.NewTransit(exporter)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	registry, err := fieldvault.LoadSchema(cfg.SchemaPath)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ic := fieldvault.NewInterceptor(transit, registry, cfg.EnableEncryption)
//
//	doc := bson.M{"name": "alice", "address": bson.M{"city": "Lyon"}}
//	if err := ic.OnBeforeSave(ctx, doc, "users"); err != nil {
//	    return err
//	}
package fieldvault
