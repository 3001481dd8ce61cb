/*
Copyright 2024 The CloudNet Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package buffer

// readOnlyDataBuf is the immutable view of a pooled buffer. It exposes the read side only,
// so asserting it to Mutable fails; AsMutable still hands out the writable view
type readOnlyDataBuf struct {
	DataBuf
}

func (rb *readOnlyDataBuf) StartTransaction() DataBuf {
	rb.DataBuf.StartTransaction()
	return rb
}

func (rb *readOnlyDataBuf) RedoTransaction() DataBuf {
	rb.DataBuf.RedoTransaction()
	return rb
}

func (rb *readOnlyDataBuf) DisableReleasing() DataBuf {
	rb.DataBuf.DisableReleasing()
	return rb
}

func (rb *readOnlyDataBuf) EnableReleasing() DataBuf {
	rb.DataBuf.EnableReleasing()
	return rb
}
