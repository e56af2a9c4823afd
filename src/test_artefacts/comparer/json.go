package comparer

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/google/go-cmp/cmp"
)

// JSONRawMessage compara json.RawMessage semanticamente: ordem das chaves e
// espaços não importam. Um documento inválido só é igual a si mesmo.
func JSONRawMessage() cmp.Option {
	return cmp.Comparer(func(x, y json.RawMessage) bool {
		if len(x) == 0 || len(y) == 0 {
			return len(x) == len(y)
		}

		var xDoc, yDoc any
		if json.Unmarshal(x, &xDoc) != nil || json.Unmarshal(y, &yDoc) != nil {
			return bytes.Equal(x, y)
		}

		return reflect.DeepEqual(xDoc, yDoc)
	})
}
