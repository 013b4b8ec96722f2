package rag

import "errors"

var ErrDocumentNotFound = errors.New("document not found")
