package disk

type reqKind int

const (
	readReq reqKind = iota
	writeReq
	allocReq
	deleteReq
)

// Scheduler serializes page I/O against any number of page files. A single
// worker goroutine drains the request channel in submission order, so a
// caller that blocks on its response channel observes fully ordered I/O.
type Scheduler struct {
	reqCh chan request
}

type request struct {
	kind   reqKind
	file   *PageFile
	pageNo uint32
	page   *Page
	respCh chan response
}

type response struct {
	page *Page
	err  error
}

// NewScheduler starts the worker and returns a scheduler ready for requests.
func NewScheduler() *Scheduler {
	s := &Scheduler{reqCh: make(chan request, 64)}
	go s.run()
	return s
}

// Read fetches a page from the file.
func (s *Scheduler) Read(file *PageFile, pageNo uint32) (*Page, error) {
	resp := s.submit(request{kind: readReq, file: file, pageNo: pageNo})
	return resp.page, resp.err
}

// Write puts the page's bytes on disk.
func (s *Scheduler) Write(file *PageFile, page *Page) error {
	return s.submit(request{kind: writeReq, file: file, page: page}).err
}

// Allocate assigns a fresh page in the file and returns it zeroed.
func (s *Scheduler) Allocate(file *PageFile) (*Page, error) {
	resp := s.submit(request{kind: allocReq, file: file})
	return resp.page, resp.err
}

// Delete releases a page of the file.
func (s *Scheduler) Delete(file *PageFile, pageNo uint32) error {
	return s.submit(request{kind: deleteReq, file: file, pageNo: pageNo}).err
}

// Close stops the worker. Outstanding requests are drained first.
func (s *Scheduler) Close() {
	close(s.reqCh)
}

func (s *Scheduler) submit(req request) response {
	req.respCh = make(chan response, 1)
	s.reqCh <- req
	return <-req.respCh
}

func (s *Scheduler) run() {
	for req := range s.reqCh {
		var resp response
		switch req.kind {
		case readReq:
			resp.page, resp.err = req.file.ReadPage(req.pageNo)
		case writeReq:
			resp.err = req.file.WritePage(req.page)
		case allocReq:
			resp.page, resp.err = req.file.AllocatePage()
		case deleteReq:
			resp.err = req.file.DeletePage(req.pageNo)
		}
		req.respCh <- resp
	}
}
